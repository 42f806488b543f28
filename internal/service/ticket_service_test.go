package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

func TestCreateTicketNumbersAreUniqueUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	const workers = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
				Title:          "Concurrent request",
				Classification: domain.Classification{Category: domain.CategoryService, Priority: domain.PriorityNormal},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[ticket.Number] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	require.Len(t, numbers, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, numbers[fmt.Sprintf("EMB-20261018-%04d", i)], "missing sequence %d", i)
	}
}

func TestCreateTicketSequenceRestartsEachUTCDay(t *testing.T) {
	h := newHarness(t)
	first := h.createTicket(t, domain.PriorityLow)
	h.clock.Advance(14 * time.Hour)
	second := h.createTicket(t, domain.PriorityLow)

	assert.Equal(t, "EMB-20261018-0001", first.Number)
	assert.Equal(t, "EMB-20261019-0001", second.Number)
	assert.Equal(t, second.CreatedAt.Add(8*time.Hour), second.ResponseDueAt)
	assert.Equal(t, second.CreatedAt.Add(48*time.Hour), second.ResolutionDueAt)
}

func TestCreateTicketRecordsReasoning(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, domain.PriorityHigh)

	activities, err := h.tickets.ListActivity(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityTicketCreated, activities[0].Type)
	assert.Equal(t, 0.8, activities[0].Details["confidence"])
	assert.Equal(t, "test", activities[0].Details["reasoning"])
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		Title:          "  ",
		Classification: domain.Classification{Priority: domain.PriorityHigh},
	})
	assert.Equal(t, errorutil.KindValidation, errorutil.KindOf(err))

	_, err = h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		Title:          "Missing priority",
		Classification: domain.Classification{},
	})
	assert.Equal(t, errorutil.KindValidation, errorutil.KindOf(err))
}

func TestGetTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.createTicket(t, domain.PriorityHigh)

	byID, err := h.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Number, byID.Number)

	byNumber, err := h.tickets.GetTicket(ctx, ticket.Number)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byNumber.ID)

	_, err = h.tickets.GetTicket(ctx, "EMB-20261018-9999")
	assert.Equal(t, errorutil.KindNotFound, errorutil.KindOf(err))

	_, err = h.tickets.GetTicket(ctx, "not-a-ticket")
	assert.Equal(t, errorutil.KindValidation, errorutil.KindOf(err))
}
