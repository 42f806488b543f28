package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	calls := 0
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return errors.New("first handler fails")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventEscalationStopped, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), New(EventTicketCreated, time.Now(), nil)))
	assert.Equal(t, 2, calls)
}

func TestSubscribeAllSeesEveryEventType(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var seen []EventType
	d.SubscribeAll(func(_ context.Context, e Event) error {
		seen = append(seen, e.Type)
		return nil
	})

	for _, eventType := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), New(eventType, time.Now(), nil)))
	}
	assert.Equal(t, AllEventTypes, seen)
}

func TestNATSRelayPublishesEverySubject(t *testing.T) {
	pub := &fakePublisher{}
	relay := newRelay(pub, "mailbot.events", zap.NewNop())
	d := NewInMemoryDispatcher(zap.NewNop())
	relay.Register(d)

	event := New(EventEscalationStepSent, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EscalationStepPayload{
		StepID:     "s1",
		StepNumber: 2,
		Channel:    domain.ChannelSMS,
		Status:     domain.StepStatusSent,
	})
	event.TicketID = "t1"
	require.NoError(t, d.Publish(context.Background(), event))

	require.Equal(t, []string{"mailbot.events.escalation_step_sent"}, pub.subjects)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "t1", decoded["ticket_id"])
	assert.Equal(t, "SMS", decoded["payload"].(map[string]any)["channel"])
}

func TestNATSRelayReturnsPublishErrors(t *testing.T) {
	relay := newRelay(&fakePublisher{err: errors.New("no responders")}, "x", zap.NewNop())
	err := relay.Handle(context.Background(), New(EventTicketCreated, time.Now(), nil))
	assert.Error(t, err)
}
