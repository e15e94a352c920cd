package alerting

import (
	"fmt"
	"strings"

	"github.com/warehouseops/pipeline/internal/events"
)

// emailSeverityColors matches the original email channel's palette.
var emailSeverityColors = map[events.Severity]string{
	events.SeverityInfo:     "#17a2b8",
	events.SeverityWarning:  "#ffc107",
	events.SeverityError:    "#dc3545",
	events.SeverityCritical: "#721c24",
}

// chatSeverityColors matches the original Slack channel's palette,
// deliberately distinct from the email palette (§D.2).
var chatSeverityColors = map[events.Severity]string{
	events.SeverityInfo:     "#36a64f",
	events.SeverityWarning:  "#ff9500",
	events.SeverityError:    "#ff0000",
	events.SeverityCritical: "#8B0000",
}

func emailColor(s events.Severity) string {
	if c, ok := emailSeverityColors[s]; ok {
		return c
	}
	return "#6c757d"
}

func chatColor(s events.Severity) string {
	if c, ok := chatSeverityColors[s]; ok {
		return c
	}
	return "#808080"
}

// emailHTMLBody renders the severity-colored HTML body used by the
// SMTP channel, mirroring _create_html_body.
func emailHTMLBody(alert events.Alert) string {
	color := emailColor(alert.Severity)

	var metadataHTML string
	if len(alert.Metadata) > 0 {
		var b strings.Builder
		b.WriteString("<p><strong>Additional Information:</strong></p><ul>")
		for k, v := range alert.Metadata {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %v</li>", k, v)
		}
		b.WriteString("</ul>")
		metadataHTML = b.String()
	}

	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; margin: 20px;">
  <div style="border-left: 4px solid %s; padding-left: 20px;">
    <h2 style="color: %s; margin-top: 0;">Warehouse Alert: %s</h2>
    <p><strong>Severity:</strong> <span style="color: %s;">%s</span></p>
    <p><strong>Source:</strong> %s</p>
    <p><strong>Time:</strong> %s</p>
    <p><strong>Description:</strong></p>
    <p style="background-color: #f8f9fa; padding: 10px; border-radius: 4px;">%s</p>
    %s
    <hr style="margin: 20px 0;">
    <p style="font-size: 12px; color: #6c757d;">Alert ID: %s</p>
  </div>
</body>
</html>`,
		color, color, alert.Title, color, strings.ToUpper(string(alert.Severity)),
		alert.Source, alert.Timestamp.Format("2006-01-02 15:04:05 UTC"),
		alert.Description, metadataHTML, alert.AlertID)
}
