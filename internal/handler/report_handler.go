package handler

import (
	"time"

	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

func (h *ReportHandler) GetDailySummary(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Query("branch_id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	date := time.Now()
	if dateParam := c.Query("date"); dateParam != "" {
		parsed, err := time.Parse("2006-01-02", dateParam)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid date, use YYYY-MM-DD"})
		}
		date = parsed
	}

	summary, err := h.service.GetDailySummary(branchID, date)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}

func (h *ReportHandler) GetSalesTrend(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Query("branch_id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	days := c.QueryInt("days", 7)
	trend, err := h.service.GetSalesTrend(branchID, days)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(trend)
}

func (h *ReportHandler) GetTopProducts(c *fiber.Ctx) error {
	branchID, err := parseUUID(c.Query("branch_id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid branch ID"})
	}

	days := c.QueryInt("days", 30)
	limit := c.QueryInt("limit", 10)
	products, err := h.service.GetTopProducts(branchID, days, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(products)
}
