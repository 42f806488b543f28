package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/aviation-mailbot/internal/api/dto"
	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/service"
	apperrors "github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// IntakeHandler accepts inbound mail pushed by a gateway.
type IntakeHandler struct {
	intake *service.IntakeService
	inbox  connector.Inbox
}

// NewIntakeHandler constructs handler.
func NewIntakeHandler(intake *service.IntakeService, inbox connector.Inbox) *IntakeHandler {
	return &IntakeHandler{intake: intake, inbox: inbox}
}

// Enqueue POST /mailboxes/:mailbox/messages. The message is stored unread
// and picked up by the next poll.
func (h *IntakeHandler) Enqueue(c *fiber.Ctx) error {
	var req dto.InboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateInbound(req); err != nil {
		return err
	}
	mailbox := strings.TrimSpace(c.Params("mailbox"))
	req.Mailbox = ""
	msg := req.ToDomain(mailbox)
	if err := h.inbox.Enqueue(c.UserContext(), msg); err != nil {
		return apperrors.NewTransientError("failed to enqueue message", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"external_id": msg.ExternalID,
		"mailbox":     mailbox,
		"status":      "queued",
	}})
}

// Process POST /messages/process runs intake synchronously.
func (h *IntakeHandler) Process(c *fiber.Ctx) error {
	var req dto.InboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateInbound(req); err != nil {
		return err
	}
	outcome, err := h.intake.ProcessMessage(c.UserContext(), req.ToDomain(""))
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if outcome.Status == service.OutcomeProcessed {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": outcomeResponse(outcome)})
}

func validateInbound(req dto.InboundMessageRequest) error {
	var missing []string
	if strings.TrimSpace(req.ExternalID) == "" {
		missing = append(missing, "external_id")
	}
	if strings.TrimSpace(req.SenderAddress) == "" {
		missing = append(missing, "sender_address")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError(strings.Join(missing, ", ")+" required", nil)
	}
	return nil
}

func outcomeResponse(o service.Outcome) dto.OutcomeResponse {
	resp := dto.OutcomeResponse{
		ExternalID:   o.ExternalID,
		Status:       string(o.Status),
		Reason:       o.Reason,
		MessageID:    o.MessageID,
		TicketID:     o.TicketID,
		TicketNumber: o.TicketNumber,
	}
	if c := o.Classification; c != nil {
		resp.Classification = &dto.ClassificationResponse{
			Category:             c.Category,
			Priority:             c.Priority,
			Confidence:           c.Confidence,
			MatchedKeywords:      c.MatchedKeywords,
			AircraftRegistration: c.AircraftRegistration,
			IsEmergency:          c.IsEmergency,
			Rule:                 c.RuleName,
			Reasoning:            c.Reasoning,
		}
	}
	return resp
}
