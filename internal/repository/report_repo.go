package repository

import (
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReportRepository interface {
	GetDailySummary(branchID uuid.UUID, date time.Time) (*DailySummary, error)
	GetSalesTrend(branchID uuid.UUID, startDate, endDate time.Time) ([]SalesTrendPoint, error)
	GetTopProducts(branchID uuid.UUID, startDate, endDate time.Time, limit int) ([]ProductSalesData, error)
}

// DailySummary is the per-branch operating-day overview.
type DailySummary struct {
	SaleCount      int64                                  `json:"sale_count"`
	VoidCount      int64                                  `json:"void_count"`
	GrossTotal     decimal.Decimal                        `json:"gross_total"`
	DiscountTotal  decimal.Decimal                        `json:"discount_total"`
	TaxTotal       decimal.Decimal                        `json:"tax_total"`
	NetTotal       decimal.Decimal                        `json:"net_total"`
	PaymentsByType map[model.PaymentMethod]decimal.Decimal `json:"payments_by_type"`
}

// SalesTrendPoint is one day in the trend chart.
type SalesTrendPoint struct {
	Date  string          `json:"date"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ProductSalesData is one row of the top sellers board.
type ProductSalesData struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int64           `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) GetDailySummary(branchID uuid.UUID, date time.Time) (*DailySummary, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	summary := &DailySummary{
		PaymentsByType: make(map[model.PaymentMethod]decimal.Decimal),
	}

	completed := r.db.Model(&model.Sale{}).
		Where("branch_id = ? AND created_at >= ? AND created_at < ? AND status = ?",
			branchID, dayStart, dayEnd, model.SaleCompleted)
	if err := completed.Count(&summary.SaleCount).Error; err != nil {
		return nil, err
	}

	err := r.db.Model(&model.Sale{}).
		Where("branch_id = ? AND created_at >= ? AND created_at < ? AND status = ?",
			branchID, dayStart, dayEnd, model.SaleVoided).
		Count(&summary.VoidCount).Error
	if err != nil {
		return nil, err
	}

	type totalsRow struct {
		Gross    decimal.Decimal
		Discount decimal.Decimal
		Tax      decimal.Decimal
		Net      decimal.Decimal
	}
	var totals totalsRow
	err = r.db.Model(&model.Sale{}).
		Select(`
			COALESCE(SUM(subtotal), 0) as gross,
			COALESCE(SUM(discount_amount), 0) as discount,
			COALESCE(SUM(tax_amount), 0) as tax,
			COALESCE(SUM(total_amount), 0) as net
		`).
		Where("branch_id = ? AND created_at >= ? AND created_at < ? AND status = ?",
			branchID, dayStart, dayEnd, model.SaleCompleted).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	summary.GrossTotal = totals.Gross
	summary.DiscountTotal = totals.Discount
	summary.TaxTotal = totals.Tax
	summary.NetTotal = totals.Net

	type methodRow struct {
		Method string
		Total  decimal.Decimal
	}
	var methods []methodRow
	err = r.db.Model(&model.SalePayment{}).
		Select("sale_payments.method as method, COALESCE(SUM(sale_payments.amount), 0) as total").
		Joins("JOIN sales ON sales.id = sale_payments.sale_id").
		Where("sales.branch_id = ? AND sales.created_at >= ? AND sales.created_at < ?",
			branchID, dayStart, dayEnd).
		Group("sale_payments.method").
		Scan(&methods).Error
	if err != nil {
		return nil, err
	}
	for _, row := range methods {
		summary.PaymentsByType[model.PaymentMethod(row.Method)] = row.Total
	}

	return summary, nil
}

func (r *reportRepo) GetSalesTrend(branchID uuid.UUID, startDate, endDate time.Time) ([]SalesTrendPoint, error) {
	var results []SalesTrendPoint

	rows, err := r.db.Model(&model.Sale{}).
		Select(`
			DATE(created_at) as date,
			COUNT(*) as count,
			COALESCE(SUM(total_amount), 0) as total
		`).
		Where("branch_id = ? AND status = ? AND created_at BETWEEN ? AND ?",
			branchID, model.SaleCompleted, startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var point SalesTrendPoint
		if err := rows.Scan(&point.Date, &point.Count, &point.Total); err != nil {
			return nil, err
		}
		results = append(results, point)
	}
	return results, nil
}

func (r *reportRepo) GetTopProducts(branchID uuid.UUID, startDate, endDate time.Time, limit int) ([]ProductSalesData, error) {
	var results []ProductSalesData

	err := r.db.Model(&model.SaleItem{}).
		Select(`
			sale_items.product_id as product_id,
			products.name as name,
			products.sku as sku,
			COALESCE(SUM(sale_items.quantity), 0) as quantity,
			COALESCE(SUM(sale_items.line_total), 0) as total
		`).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Where("sales.branch_id = ? AND sales.status = ? AND sales.created_at BETWEEN ? AND ?",
			branchID, model.SaleCompleted, startDate, endDate).
		Group("sale_items.product_id, products.name, products.sku").
		Order("quantity DESC").
		Limit(limit).
		Scan(&results).Error
	return results, err
}
