package handler

import (
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InvoiceHandler struct {
	service service.InvoiceService
}

func NewInvoiceHandler(s service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: s}
}

func (h *InvoiceHandler) GetInvoices(c *fiber.Ctx) error {
	invoices, err := h.service.GetAllInvoices()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(invoices)
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	invoiceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid invoice ID"})
	}

	invoice, err := h.service.GetInvoiceByID(invoiceID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Invoice not found"})
	}
	return c.JSON(invoice)
}

func (h *InvoiceHandler) GetInvoiceBySale(c *fiber.Ctx) error {
	saleID, err := parseUUID(c.Params("saleId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid sale ID"})
	}

	invoice, err := h.service.GetInvoiceBySale(saleID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Invoice not found"})
	}
	return c.JSON(invoice)
}

// RetryInvoice forces an immediate submission attempt on a PENDING
// invoice instead of waiting for the scheduler.
func (h *InvoiceHandler) RetryInvoice(c *fiber.Ctx) error {
	invoiceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid invoice ID"})
	}

	invoice, err := h.service.RetryInvoice(invoiceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Retry attempted", "data": invoice})
}

func (h *InvoiceHandler) GetCreditNote(c *fiber.Ctx) error {
	invoiceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid invoice ID"})
	}

	note, err := h.service.GetCreditNoteByInvoice(invoiceID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Credit note not found"})
	}
	return c.JSON(note)
}
