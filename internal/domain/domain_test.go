package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketApplySLA(t *testing.T) {
	created := time.Date(2024, 3, 9, 22, 10, 0, 0, time.UTC)
	tests := map[Priority]struct {
		response   time.Duration
		resolution time.Duration
	}{
		PriorityCritical: {15 * time.Minute, 2 * time.Hour},
		PriorityHigh:     {60 * time.Minute, 8 * time.Hour},
		PriorityNormal:   {4 * time.Hour, 24 * time.Hour},
		PriorityLow:      {8 * time.Hour, 48 * time.Hour},
	}
	for priority, want := range tests {
		t.Run(string(priority), func(t *testing.T) {
			ticket := Ticket{Priority: priority, CreatedAt: created}
			ticket.ApplySLA()
			assert.Equal(t, want.response, ticket.ResponseDueAt.Sub(created))
			assert.Equal(t, want.resolution, ticket.ResolutionDueAt.Sub(created))
		})
	}
}

func TestSLAArithmeticProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("deadlines are a pure offset of creation time", prop.ForAll(
		func(idx int, offsetMinutes int64) bool {
			priority := Priorities[idx]
			created := time.Unix(0, 0).UTC().Add(time.Duration(offsetMinutes) * time.Minute)
			ticket := Ticket{Priority: priority, CreatedAt: created}
			ticket.ApplySLA()
			return ticket.ResponseDueAt.Sub(created) == priority.ResponseWindow() &&
				ticket.ResolutionDueAt.Sub(created) == priority.ResolutionWindow() &&
				ticket.ResolutionDueAt.After(ticket.ResponseDueAt)
		},
		gen.IntRange(0, len(Priorities)-1),
		gen.Int64Range(0, 60*24*365*30),
	))

	properties.TestingRun(t)
}

func TestFormatTicketNumber(t *testing.T) {
	at := time.Date(2024, 1, 2, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, "EMB-20240103-0007", FormatTicketNumber(at, 7))
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), TicketDay(at))
}

func TestProcessingStateTransitions(t *testing.T) {
	assert.True(t, StateReceived.CanTransition(StateParsing))
	assert.True(t, StateClassifying.CanTransition(StateSkipped))
	assert.True(t, StateSendingConfirmation.CanTransition(StateFailed))
	assert.True(t, StateCreatingTicket.CanTransition(StateCreatingTicket))
	assert.False(t, StateReceived.CanTransition(StateCompleted))
	assert.False(t, StateCompleted.CanTransition(StateFailed))
	assert.False(t, StateSkipped.CanTransition(StateParsing))
	assert.True(t, StateClassifying.CanTransition(StateParsing))
	assert.True(t, StateCreatingTicket.CanTransition(StateParsing))
	assert.False(t, StateSendingConfirmation.CanTransition(StateParsing))

	now := time.Now()
	msg := Message{State: StateSchedulingEscalation}
	require.NoError(t, msg.Transition(StateCompleted, now))
	require.NotNil(t, msg.CompletedAt)
	assert.Error(t, msg.Transition(StateParsing, now))
}

func TestMessageFail(t *testing.T) {
	msg := Message{State: StateClassifying, ErrorCount: 1}
	msg.Fail(errors.New("rules missing"), time.Now())
	assert.Equal(t, StateFailed, msg.State)
	assert.Equal(t, 2, msg.ErrorCount)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "rules missing", *msg.LastError)
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("AOG at LAX", "hydraulic failure")
	assert.Equal(t, a, Fingerprint("AOG at LAX", "hydraulic failure"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Fingerprint("AOG at LA", "Xhydraulic failure"))
}

func TestStepRegisterFailure(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	retryAt := now.Add(5 * time.Minute)

	t.Run("reschedules until the budget is spent", func(t *testing.T) {
		step := EscalationStep{Status: StepStatusPending, MaxRetries: 3}
		for i := 1; i <= 2; i++ {
			step.RegisterFailure(errors.New("smtp timeout"), true, retryAt, now)
			assert.Equal(t, StepStatusScheduled, step.Status)
			assert.Equal(t, i, step.RetryCount)
			assert.Equal(t, retryAt, step.ScheduledAt)
			step.Status = StepStatusPending
		}
		step.RegisterFailure(errors.New("smtp timeout"), true, retryAt, now)
		assert.Equal(t, StepStatusFailed, step.Status)
		assert.Equal(t, 3, step.RetryCount)
	})

	t.Run("terminal errors fail immediately", func(t *testing.T) {
		step := EscalationStep{Status: StepStatusPending, MaxRetries: 3}
		step.RegisterFailure(errors.New("invalid recipient"), false, retryAt, now)
		assert.Equal(t, StepStatusFailed, step.Status)
		assert.Equal(t, 1, step.RetryCount)
	})
}

func TestRetryCountNeverExceedsMax(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("retry_count <= max_retries", prop.ForAll(
		func(maxRetries, failures int) bool {
			step := EscalationStep{Status: StepStatusPending, MaxRetries: maxRetries}
			now := time.Now()
			for i := 0; i < failures && step.Status != StepStatusFailed; i++ {
				step.RegisterFailure(errors.New("down"), true, now, now)
				if step.Status == StepStatusScheduled {
					step.Status = StepStatusPending
				}
			}
			return step.RetryCount <= step.MaxRetries
		},
		gen.IntRange(1, 6),
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}

func TestEnumScanRejectsUnknownValues(t *testing.T) {
	var p Priority
	require.NoError(t, p.Scan([]byte("high")))
	assert.Equal(t, PriorityHigh, p)
	assert.Error(t, p.Scan("SEVERE"))

	var c Category
	require.NoError(t, c.Scan("aog"))
	assert.Equal(t, CategoryEmergency, c)

	var s StepStatus
	assert.Error(t, s.Scan("DONE"))
	assert.Error(t, s.Scan(nil))

	var state ProcessingState
	require.NoError(t, state.Scan("SKIPPED"))
	assert.True(t, state.IsTerminal())
}

func TestStepStatusTransitions(t *testing.T) {
	assert.True(t, StepStatusScheduled.CanTransition(StepStatusPending))
	assert.True(t, StepStatusScheduled.CanTransition(StepStatusSkipped))
	assert.True(t, StepStatusPending.CanTransition(StepStatusSent))
	assert.False(t, StepStatusSkipped.CanTransition(StepStatusSent))
	assert.False(t, StepStatusSent.CanTransition(StepStatusScheduled))
}
