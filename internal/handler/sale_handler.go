package handler

import (
	"time"

	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SaleHandler struct {
	sales service.SaleService
	voids service.VoidService
}

func NewSaleHandler(sales service.SaleService, voids service.VoidService) *SaleHandler {
	return &SaleHandler{sales: sales, voids: voids}
}

func (h *SaleHandler) CreateSale(c *fiber.Ctx) error {
	var req service.CreateSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	sale, err := h.sales.CreateSale(&req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Sale completed", "data": sale})
}

func (h *SaleHandler) GetSale(c *fiber.Ctx) error {
	saleID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid sale ID"})
	}

	sale, err := h.sales.GetSaleByID(saleID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Sale not found"})
	}
	return c.JSON(sale)
}

// GetSales lists sales, optionally scoped by session or branch+date.
func (h *SaleHandler) GetSales(c *fiber.Ctx) error {
	if sessionParam := c.Query("session_id"); sessionParam != "" {
		sessionID, err := parseUUID(sessionParam)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid session ID"})
		}
		sales, err := h.sales.GetSalesBySession(sessionID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
		}
		return c.JSON(sales)
	}

	if branchParam := c.Query("branch_id"); branchParam != "" {
		branchID, err := parseUUID(branchParam)
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
		sales, err := h.sales.GetSalesByBranchAndDate(branchID, date)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
		}
		return c.JSON(sales)
	}

	sales, err := h.sales.GetAllSales()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(sales)
}

func (h *SaleHandler) VoidSale(c *fiber.Ctx) error {
	saleID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid sale ID"})
	}

	var req service.VoidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	sale, err := h.voids.VoidSale(saleID, &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Sale voided", "data": sale})
}
