package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/aviation-mailbot/internal/api/dto"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/service"
	apperrors "github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// TicketsHandler exposes ticket lookups and escalation control.
type TicketsHandler struct {
	tickets     *service.TicketService
	escalations *service.EscalationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, escalations *service.EscalationService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, escalations: escalations}
}

// GetTicket GET /tickets/:id. The id may also be a ticket number.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	activity, err := h.tickets.ListActivity(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, activity)})
}

// EscalationStatus GET /tickets/:id/escalation.
func (h *TicketsHandler) EscalationStatus(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	status, err := h.escalations.Status(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationStatus(status)})
}

// StartEscalation POST /tickets/:id/escalation.
func (h *TicketsHandler) StartEscalation(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	status, err := h.escalations.StartEscalation(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationStatus(status)})
}

// Acknowledge POST /tickets/:id/acknowledge stops escalation.
func (h *TicketsHandler) Acknowledge(c *fiber.Ctx) error {
	var req dto.AcknowledgeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	status, err := h.escalations.StopEscalation(c.UserContext(), ticket.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationStatus(status)})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                   ticket.ID,
		Number:               ticket.Number,
		MessageID:            ticket.MessageID,
		Title:                ticket.Title,
		Description:          ticket.Description,
		Category:             ticket.Category,
		Priority:             ticket.Priority,
		Status:               ticket.Status,
		CustomerEmail:        ticket.CustomerEmail,
		CustomerName:         ticket.CustomerName,
		CustomerPhone:        ticket.CustomerPhone,
		AircraftRegistration: ticket.AircraftRegistration,
		ResponseDueAt:        ticket.ResponseDueAt,
		ResolutionDueAt:      ticket.ResolutionDueAt,
		EscalationLevel:      ticket.EscalationLevel,
		LastEscalatedAt:      ticket.LastEscalatedAt,
		EscalationStopped:    ticket.EscalationStopped,
		EscalationStopReason: ticket.EscalationStopReason,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, activity []domain.Activity) dto.TicketDetailResponse {
	entries := make([]dto.ActivityResponse, 0, len(activity))
	for _, a := range activity {
		entries = append(entries, dto.ActivityResponse{
			ID:          a.ID,
			MessageID:   a.MessageID,
			Type:        a.Type,
			Actor:       a.Actor,
			Description: a.Description,
			Details:     a.Details,
			CreatedAt:   a.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{TicketResponse: ticketResponse(ticket), Activity: entries}
}

func escalationStatus(status *service.EscalationStatus) dto.EscalationStatusResponse {
	steps := make([]dto.EscalationStepResponse, 0, len(status.Steps))
	for _, s := range status.Steps {
		steps = append(steps, dto.EscalationStepResponse{
			ID:          s.ID,
			StepNumber:  s.StepNumber,
			Channel:     s.Channel,
			ContactName: s.ContactName,
			ContactRole: s.ContactRole,
			Recipient:   s.Recipient,
			Status:      s.Status,
			ScheduledAt: s.ScheduledAt,
			SentAt:      s.SentAt,
			RetryCount:  s.RetryCount,
			MaxRetries:  s.MaxRetries,
			LastError:   s.LastError,
			ExternalID:  s.ExternalID,
		})
	}
	t := status.Ticket
	return dto.EscalationStatusResponse{
		TicketID:          t.ID,
		TicketNumber:      t.Number,
		EscalationLevel:   t.EscalationLevel,
		LastEscalatedAt:   t.LastEscalatedAt,
		EscalationStopped: t.EscalationStopped,
		StopReason:        t.EscalationStopReason,
		Steps:             steps,
	}
}
