package connector

import (
	"context"
	"net/mail"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// LogSender validates recipients and writes notifications to the log in
// place of a real mail or SMS provider.
type LogSender struct {
	from   string
	logger *zap.Logger
}

func NewLogSender(from string, logger *zap.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errorutil.NewTransientError("send cancelled", err)
	}
	if err := ValidateRecipient(n.Channel, n.To); err != nil {
		return "", err
	}
	s.logger.Info("notification sent",
		zap.String("correlation_id", n.CorrelationID),
		zap.String("channel", string(n.Channel)),
		zap.String("from", s.from),
		zap.String("to", n.To),
		zap.String("subject", n.Subject),
		zap.Int("body_length", len(n.Body)),
	)
	return "log-" + n.CorrelationID, nil
}

// ValidateRecipient rejects addresses no provider could deliver to.
func ValidateRecipient(channel domain.Channel, to string) error {
	switch channel {
	case domain.ChannelEmail:
		if _, err := mail.ParseAddress(to); err != nil {
			return errorutil.NewValidationError("invalid email recipient", map[string]any{"to": to})
		}
	case domain.ChannelSMS:
		digits := 0
		for _, r := range to {
			switch {
			case unicode.IsDigit(r):
				digits++
			case strings.ContainsRune("+-(). ", r):
			default:
				return errorutil.NewValidationError("invalid sms recipient", map[string]any{"to": to})
			}
		}
		if digits < 7 {
			return errorutil.NewValidationError("invalid sms recipient", map[string]any{"to": to})
		}
	default:
		return errorutil.NewValidationError("unknown channel", map[string]any{"channel": channel})
	}
	return nil
}
