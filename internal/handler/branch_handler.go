package handler

import (
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type BranchHandler struct {
	service service.BranchService
}

func NewBranchHandler(s service.BranchService) *BranchHandler {
	return &BranchHandler{service: s}
}

func (h *BranchHandler) CreateBranch(c *fiber.Ctx) error {
	var branch model.Branch
	if err := c.BodyParser(&branch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateBranch(&branch, getUserID(c)); err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Branch created", "data": branch})
}

func (h *BranchHandler) UpdateBranch(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	var branch model.Branch
	if err := c.BodyParser(&branch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	updated, err := h.service.UpdateBranch(branchID, &branch, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Branch updated", "data": updated})
}

func (h *BranchHandler) GetBranches(c *fiber.Ctx) error {
	branches, err := h.service.GetAllBranches()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(branches)
}

func (h *BranchHandler) GetBranch(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	branch, err := h.service.GetBranchByID(branchID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Branch not found"})
	}
	return c.JSON(branch)
}
