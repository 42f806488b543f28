package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

func TestMemoryInbox(t *testing.T) {
	ctx := context.Background()
	inbox := NewMemoryInbox()
	for _, id := range []string{"a", "b", "c", "a"} {
		require.NoError(t, inbox.Enqueue(ctx, domain.InboundMessage{ExternalID: id, Mailbox: "service"}))
	}

	msgs, err := inbox.FetchUnread(ctx, "service", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ExternalID)
	assert.Equal(t, "b", msgs[1].ExternalID)

	require.NoError(t, inbox.MarkRead(ctx, "service", "a"))
	msgs, err = inbox.FetchUnread(ctx, "service", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].ExternalID)

	msgs, err = inbox.FetchUnread(ctx, "billing", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLogSenderValidation(t *testing.T) {
	sender := NewLogSender("noreply@example.com", zap.NewNop())
	ctx := context.Background()

	id, err := sender.Send(ctx, Notification{CorrelationID: "step-1", Channel: domain.ChannelEmail, To: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "log-step-1", id)

	_, err = sender.Send(ctx, Notification{Channel: domain.ChannelSMS, To: "+1 (310) 555-0199"})
	require.NoError(t, err)

	_, err = sender.Send(ctx, Notification{Channel: domain.ChannelEmail, To: "not-an-address"})
	require.Error(t, err)
	assert.False(t, errorutil.IsRetryable(err))

	_, err = sender.Send(ctx, Notification{Channel: domain.ChannelSMS, To: "call me"})
	assert.False(t, errorutil.IsRetryable(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sender.Send(cancelled, Notification{Channel: domain.ChannelEmail, To: "ops@example.com"})
	require.Error(t, err)
	assert.True(t, errorutil.IsRetryable(err))
}
