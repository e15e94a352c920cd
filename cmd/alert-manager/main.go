// Command alert-manager runs the Alert Manager (C9): it consumes the
// warehouse.alerts topic, deduplicates and notifies through the
// configured channels, and exposes an HTTP API for acknowledging,
// resolving, and listing active alerts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warehouseops/pipeline/internal/alerting"
	"github.com/warehouseops/pipeline/internal/bus"
	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/internal/metricsserver"
	"github.com/warehouseops/pipeline/pkg/communication/chat"
	chatslack "github.com/warehouseops/pipeline/pkg/communication/chat/adapters/slack"
	chatwebhook "github.com/warehouseops/pipeline/pkg/communication/chat/adapters/webhook"
	"github.com/warehouseops/pipeline/pkg/communication/email"
	smtpemail "github.com/warehouseops/pipeline/pkg/communication/email/adapters/smtp"
	genericwebhook "github.com/warehouseops/pipeline/pkg/communication/webhook"
	"github.com/warehouseops/pipeline/pkg/config"
	"github.com/warehouseops/pipeline/pkg/logger"
	"github.com/warehouseops/pipeline/pkg/telemetry"
)

type appConfig struct {
	Log       logger.Config
	Telemetry telemetry.Config
	Email     email.Config
	Chat      chat.Config

	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092" validate:"required"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" env-default:"alert-manager"`
	AlertsTopic  string `env:"ALERTS_TOPIC" env-default:"warehouse.alerts"`

	MinNotificationSeverity string `env:"ALERT_MIN_NOTIFICATION_SEVERITY" env-default:"warning"`

	// EmailTo is the comma-separated recipient list for the email channel.
	EmailTo string `env:"ALERT_EMAIL_TO"`

	// ChatWebhookURL, when set, wires an incoming-webhook chat channel
	// instead of the bot-token Slack API.
	ChatWebhookURL    string `env:"ALERT_CHAT_WEBHOOK_URL"`
	ChatChannelID     string `env:"ALERT_CHAT_CHANNEL_ID"`
	GenericWebhookURL string `env:"ALERT_WEBHOOK_URL"`

	HTTPAddr    string `env:"ALERT_HTTP_ADDR" env-default:":8092"`
	MetricsAddr string `env:"METRICS_ADDR" env-default:":8093"`
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		os.Exit(1)
	}

	log := logger.Init(cfg.Log)

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := metricsserver.NewServer(cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.Run(ctx); err != nil {
			log.ErrorContext(ctx, "metrics server stopped", "error", err)
		}
	}()

	channels := buildChannels(log, cfg)

	mgr := alerting.New(log, alerting.Config{
		MinNotificationSeverity: events.Severity(cfg.MinNotificationSeverity),
	}, channels, nil)

	go mgr.RunHealthLoop(ctx)

	consumer, err := bus.NewConsumer(bus.ConsumerConfig{
		Brokers:   splitCSV(cfg.KafkaBrokers),
		GroupID:   cfg.KafkaGroupID,
		Topics:    []string{cfg.AlertsTopic},
		BatchSize: 100,
	})
	if err != nil {
		log.Error("failed to build alerts consumer", "error", err)
		os.Exit(1)
	}
	go runAlertConsumeLoop(ctx, log, consumer, mgr)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: buildRouter(mgr)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorContext(ctx, "alert api server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func buildChannels(log *slog.Logger, cfg appConfig) []alerting.Channel {
	var channels []alerting.Channel

	if cfg.Email.Driver != "" && cfg.EmailTo != "" {
		sender, err := smtpemail.New(cfg.Email)
		if err != nil {
			log.Warn("email channel disabled", "error", err)
		} else {
			channels = append(channels, alerting.NewEmailChannel(sender, cfg.Email.DefaultFrom, splitCSV(cfg.EmailTo)))
		}
	}

	switch {
	case cfg.ChatWebhookURL != "":
		sender, err := chatwebhook.New(chatwebhook.Config{URL: cfg.ChatWebhookURL})
		if err != nil {
			log.Warn("chat webhook channel disabled", "error", err)
		} else {
			channels = append(channels, alerting.NewChatChannel(sender, cfg.ChatChannelID))
		}
	case cfg.Chat.SlackToken != "":
		sender, err := chatslack.New(cfg.Chat)
		if err != nil {
			log.Warn("slack channel disabled", "error", err)
		} else {
			channels = append(channels, alerting.NewChatChannel(sender, cfg.ChatChannelID))
		}
	}

	if cfg.GenericWebhookURL != "" {
		sender := genericwebhook.New(genericwebhook.Config{Timeout: 10 * time.Second, Retries: 2})
		channels = append(channels, alerting.NewWebhookChannel(sender, cfg.GenericWebhookURL, nil))
	}

	return channels
}

// runAlertConsumeLoop feeds AlertPayload records from the detector off
// the bus into the Alert Manager, creating (and notifying through) an
// Alert for each.
func runAlertConsumeLoop(ctx context.Context, log *slog.Logger, consumer *bus.Consumer, mgr *alerting.Manager) {
	defer consumer.Close()

	for {
		batch, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.ErrorContext(ctx, "poll failed", "error", err)
			continue
		}

		for _, msg := range batch.Messages {
			var payload events.AlertPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				log.WarnContext(ctx, "dropping unparseable alert payload", "error", err)
				continue
			}

			alertID := fmt.Sprintf("%s_%s", payload.Type, payload.ItemID)
			mgr.Create(ctx, alertID,
				fmt.Sprintf("%s: %s", payload.AnomalyType, payload.ItemID),
				fmt.Sprintf("anomaly_type=%s confidence=%.2f", payload.AnomalyType, payload.Confidence),
				events.Severity(payload.Severity), "anomaly_detector", payload.Details)
		}

		batch.Commit()
	}
}

func buildRouter(mgr *alerting.Manager) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /alerts", func(w http.ResponseWriter, r *http.Request) {
		severity := events.Severity(r.URL.Query().Get("severity"))
		writeJSON(w, http.StatusOK, mgr.ListActive(severity))
	})

	mux.HandleFunc("POST /alerts/{id}/ack", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body struct {
			User string `json:"user"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !mgr.Acknowledge(id, body.User) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /alerts/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !mgr.Resolve(id) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
