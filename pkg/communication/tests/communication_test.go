package tests

import (
	"context"
	"testing"

	"github.com/warehouseops/pipeline/pkg/communication/chat"
	chatmem "github.com/warehouseops/pipeline/pkg/communication/chat/adapters/memory"
	"github.com/warehouseops/pipeline/pkg/communication/email"
	emailmem "github.com/warehouseops/pipeline/pkg/communication/email/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMemoryAdapter(t *testing.T) {
	sender := emailmem.New()
	defer sender.Close()

	ctx := context.Background()
	msg := &email.Message{
		From:    "test@example.com",
		To:      []string{"user@example.com"},
		Subject: "Test Email",
		Body:    email.Body{PlainText: "Hello World"},
	}

	err := sender.Send(ctx, msg)
	require.NoError(t, err)

	sent := sender.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, msg, sent[0])
}

func TestChatMemoryAdapter(t *testing.T) {
	sender := chatmem.New()
	defer sender.Close()

	ctx := context.Background()
	msg := &chat.Message{
		ChannelID: "general",
		Text:      "Hello Chat",
	}

	err := sender.Send(ctx, msg)
	require.NoError(t, err)

	sent := sender.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, msg, sent[0])
}

func TestInstrumentedWrappers(t *testing.T) {
	t.Run("Email", func(t *testing.T) {
		base := emailmem.New()
		wrapper := email.NewInstrumentedSender(base)
		err := wrapper.Send(context.Background(), &email.Message{To: []string{"test"}})
		require.NoError(t, err)
	})
}
