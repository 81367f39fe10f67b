package handler

import (
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AlertHandler struct {
	service service.AlertService
}

func NewAlertHandler(s service.AlertService) *AlertHandler {
	return &AlertHandler{service: s}
}

func (h *AlertHandler) GetAlerts(c *fiber.Ctx) error {
	var branchID *uuid.UUID
	if branchParam := c.Query("branch_id"); branchParam != "" {
		parsed, err := parseUUID(branchParam)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
		}
		branchID = &parsed
	}
	unreadOnly := c.QueryBool("unread_only", false)

	alerts, err := h.service.GetAll(branchID, unreadOnly)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(alerts)
}

func (h *AlertHandler) MarkRead(c *fiber.Ctx) error {
	alertID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	if err := h.service.MarkRead(alertID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Alert marked read"})
}
