package handler

import (
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	service service.SessionService
}

func NewSessionHandler(s service.SessionService) *SessionHandler {
	return &SessionHandler{service: s}
}

func (h *SessionHandler) OpenSession(c *fiber.Ctx) error {
	var req service.OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	session, err := h.service.OpenSession(&req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Session opened", "data": session})
}

func (h *SessionHandler) CloseSession(c *fiber.Ctx) error {
	sessionID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	var req service.CloseSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	session, err := h.service.CloseSession(sessionID, &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Session closed", "data": session})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	session, err := h.service.GetSessionByID(sessionID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(session)
}

// GetCurrent looks up the open session for a branch register.
func (h *SessionHandler) GetCurrent(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Query("branch_id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}
	registerCode := c.Query("register_code")
	if registerCode == "" {
		return c.Status(400).JSON(fiber.Map{"error": "register_code is required"})
	}

	session, err := h.service.GetCurrentSession(branchID, registerCode)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "No open session"})
	}
	return c.JSON(session)
}

func (h *SessionHandler) GetByBranch(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Params("branchId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	sessions, err := h.service.GetSessionsByBranch(branchID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(sessions)
}
