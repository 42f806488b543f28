package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/aviation-mailbot/internal/service"
)

// JobsHandler triggers the periodic jobs on demand.
type JobsHandler struct {
	intake      *service.IntakeService
	escalations *service.EscalationService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(intake *service.IntakeService, escalations *service.EscalationService) *JobsHandler {
	return &JobsHandler{intake: intake, escalations: escalations}
}

// Poll POST /jobs/poll.
func (h *JobsHandler) Poll(c *fiber.Ctx) error {
	if mailbox := c.Query("mailbox"); mailbox != "" {
		report, err := h.intake.ProcessMailbox(c.UserContext(), mailbox)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": []service.MailboxReport{report}})
	}
	reports, err := h.intake.ProcessAllMailboxes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reports})
}

// Escalations POST /jobs/escalations.
func (h *JobsHandler) Escalations(c *fiber.Ctx) error {
	report, err := h.escalations.ProcessDue(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
