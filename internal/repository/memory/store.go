// Package memory is an in-process Store used when no Postgres DSN is
// configured and by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
)

type state struct {
	messages   map[string]domain.Message
	byExternal map[string]string
	tickets    map[string]domain.Ticket
	byNumber   map[string]string
	counters   map[string]int
	steps      map[string]domain.EscalationStep
	stepOrder  []string
	activities []domain.Activity
}

func newState() *state {
	return &state{
		messages:   map[string]domain.Message{},
		byExternal: map[string]string{},
		tickets:    map[string]domain.Ticket{},
		byNumber:   map[string]string{},
		counters:   map[string]int{},
		steps:      map[string]domain.EscalationStep{},
	}
}

func (s *state) clone() *state {
	out := &state{
		messages:   make(map[string]domain.Message, len(s.messages)),
		byExternal: make(map[string]string, len(s.byExternal)),
		tickets:    make(map[string]domain.Ticket, len(s.tickets)),
		byNumber:   make(map[string]string, len(s.byNumber)),
		counters:   make(map[string]int, len(s.counters)),
		steps:      make(map[string]domain.EscalationStep, len(s.steps)),
		stepOrder:  append([]string(nil), s.stepOrder...),
		activities: append([]domain.Activity(nil), s.activities...),
	}
	for k, v := range s.messages {
		out.messages[k] = v
	}
	for k, v := range s.byExternal {
		out.byExternal[k] = v
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.byNumber {
		out.byNumber[k] = v
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	for k, v := range s.steps {
		out.steps[k] = v
	}
	return out
}

// Store keeps every entity behind one mutex. Transactions hold the mutex
// for their whole duration and work on a copy that replaces the live state
// only on success.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Repositories() repository.Repositories {
	return s.repos(view{store: s})
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, s.repos(view{store: s, tx: working})); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) repos(v view) repository.Repositories {
	return repository.Repositories{
		Messages:   messageRepo{v},
		Tickets:    ticketRepo{v},
		Steps:      stepRepo{v},
		Activities: activityRepo{v},
	}
}

type view struct {
	store *Store
	tx    *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

type messageRepo struct{ v view }

func (r messageRepo) GetByExternalID(_ context.Context, externalID string) (*domain.Message, error) {
	var out *domain.Message
	err := r.v.do(func(st *state) error {
		id, ok := st.byExternal[externalID]
		if !ok {
			return repository.ErrNotFound
		}
		msg := st.messages[id]
		out = &msg
		return nil
	})
	return out, err
}

func (r messageRepo) CreateIfAbsent(_ context.Context, msg *domain.Message) (bool, error) {
	created := false
	err := r.v.do(func(st *state) error {
		if _, exists := st.byExternal[msg.ExternalID]; exists {
			return nil
		}
		msg.ID = uuid.NewString()
		msg.UpdatedAt = msg.CreatedAt
		st.messages[msg.ID] = *msg
		st.byExternal[msg.ExternalID] = msg.ID
		created = true
		return nil
	})
	return created, err
}

func (r messageRepo) Update(_ context.Context, msg *domain.Message) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.messages[msg.ID]; !ok {
			return repository.ErrNotFound
		}
		st.messages[msg.ID] = *msg
		return nil
	})
}

type ticketRepo struct{ v view }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(st *state) error {
		if _, dup := st.byNumber[ticket.Number]; dup {
			return errDuplicate("ticket number " + ticket.Number)
		}
		ticket.ID = uuid.NewString()
		ticket.UpdatedAt = ticket.CreatedAt
		st.tickets[ticket.ID] = *ticket
		st.byNumber[ticket.Number] = ticket.ID
		return nil
	})
}

func (r ticketRepo) get(match func(domain.Ticket) bool) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(func(st *state) error {
		for _, t := range st.tickets {
			if match(t) {
				ticket := t
				out = &ticket
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return r.get(func(t domain.Ticket) bool { return t.ID == id })
}

func (r ticketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	return r.get(func(t domain.Ticket) bool { return t.Number == number })
}

func (r ticketRepo) GetByMessageID(_ context.Context, messageID string) (*domain.Ticket, error) {
	return r.get(func(t domain.Ticket) bool { return t.MessageID != nil && *t.MessageID == messageID })
}

func (r ticketRepo) NextSequence(_ context.Context, day time.Time) (int, error) {
	var seq int
	err := r.v.do(func(st *state) error {
		key := domain.TicketDay(day).Format("2006-01-02")
		st.counters[key]++
		seq = st.counters[key]
		return nil
	})
	return seq, err
}

func (r ticketRepo) RecordEscalation(_ context.Context, ticketID string, stepNumber int, at time.Time) error {
	return r.v.do(func(st *state) error {
		t, ok := st.tickets[ticketID]
		if !ok {
			return repository.ErrNotFound
		}
		t.RecordEscalation(stepNumber, at)
		st.tickets[ticketID] = t
		return nil
	})
}

func (r ticketRepo) StopEscalation(_ context.Context, ticketID, reason string, at time.Time) (bool, error) {
	changed := false
	err := r.v.do(func(st *state) error {
		t, ok := st.tickets[ticketID]
		if !ok {
			return repository.ErrNotFound
		}
		if t.EscalationStopped {
			return nil
		}
		t.EscalationStopped = true
		t.EscalationStopReason = &reason
		t.UpdatedAt = at
		st.tickets[ticketID] = t
		changed = true
		return nil
	})
	return changed, err
}

type stepRepo struct{ v view }

func (r stepRepo) CreateBatch(_ context.Context, steps []domain.EscalationStep) error {
	return r.v.do(func(st *state) error {
		for i := range steps {
			for _, existing := range st.steps {
				if existing.TicketID == steps[i].TicketID && existing.StepNumber == steps[i].StepNumber && existing.Channel == steps[i].Channel {
					return errDuplicate("escalation step")
				}
			}
			steps[i].ID = uuid.NewString()
			steps[i].UpdatedAt = steps[i].CreatedAt
			st.steps[steps[i].ID] = steps[i]
			st.stepOrder = append(st.stepOrder, steps[i].ID)
		}
		return nil
	})
}

func (r stepRepo) CountByTicket(_ context.Context, ticketID string) (int, error) {
	count := 0
	err := r.v.do(func(st *state) error {
		for _, s := range st.steps {
			if s.TicketID == ticketID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r stepRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.EscalationStep, error) {
	var out []domain.EscalationStep
	err := r.v.do(func(st *state) error {
		for _, id := range st.stepOrder {
			if s := st.steps[id]; s.TicketID == ticketID {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StepNumber != out[j].StepNumber {
			return out[i].StepNumber < out[j].StepNumber
		}
		return out[i].Channel < out[j].Channel
	})
	return out, err
}

func (r stepRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.EscalationStep, error) {
	var out []domain.EscalationStep
	err := r.v.do(func(st *state) error {
		for _, id := range st.stepOrder {
			s := st.steps[id]
			if s.Status != domain.StepStatusScheduled || s.ScheduledAt.After(now) {
				continue
			}
			if st.tickets[s.TicketID].EscalationStopped {
				continue
			}
			out = append(out, s)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		if out[i].StepNumber != out[j].StepNumber {
			return out[i].StepNumber < out[j].StepNumber
		}
		return out[i].Channel < out[j].Channel
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r stepRepo) Claim(_ context.Context, stepID string, now time.Time) (bool, error) {
	claimed := false
	err := r.v.do(func(st *state) error {
		s, ok := st.steps[stepID]
		if !ok || s.Status != domain.StepStatusScheduled || st.tickets[s.TicketID].EscalationStopped {
			return nil
		}
		s.Status = domain.StepStatusPending
		s.UpdatedAt = now
		st.steps[stepID] = s
		claimed = true
		return nil
	})
	return claimed, err
}

func (r stepRepo) Update(_ context.Context, step *domain.EscalationStep) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.steps[step.ID]; !ok {
			return repository.ErrNotFound
		}
		st.steps[step.ID] = *step
		return nil
	})
}

func (r stepRepo) SkipScheduled(_ context.Context, ticketID string, at time.Time) (int, error) {
	skipped := 0
	err := r.v.do(func(st *state) error {
		for id, s := range st.steps {
			if s.TicketID == ticketID && s.Status == domain.StepStatusScheduled {
				s.Status = domain.StepStatusSkipped
				s.UpdatedAt = at
				st.steps[id] = s
				skipped++
			}
		}
		return nil
	})
	return skipped, err
}

func (r stepRepo) ReleaseStale(_ context.Context, staleBefore, now time.Time) (int, int, error) {
	requeued, skipped := 0, 0
	err := r.v.do(func(st *state) error {
		for id, s := range st.steps {
			if s.Status != domain.StepStatusPending || !s.UpdatedAt.Before(staleBefore) {
				continue
			}
			if st.tickets[s.TicketID].EscalationStopped {
				s.Status = domain.StepStatusSkipped
				skipped++
			} else {
				s.Status = domain.StepStatusScheduled
				s.ScheduledAt = now
				requeued++
			}
			s.UpdatedAt = now
			st.steps[id] = s
		}
		return nil
	})
	return requeued, skipped, err
}

type activityRepo struct{ v view }

func (r activityRepo) Create(_ context.Context, activity *domain.Activity) error {
	return r.v.do(func(st *state) error {
		activity.ID = uuid.NewString()
		st.activities = append(st.activities, *activity)
		return nil
	})
}

func (r activityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Activity, error) {
	var out []domain.Activity
	err := r.v.do(func(st *state) error {
		for _, a := range st.activities {
			if a.TicketID != nil && *a.TicketID == ticketID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}
