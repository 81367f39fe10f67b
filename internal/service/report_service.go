package service

import (
	"time"

	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
)

type ReportService interface {
	GetDailySummary(branchID uuid.UUID, date time.Time) (*repository.DailySummary, error)
	GetSalesTrend(branchID uuid.UUID, days int) ([]repository.SalesTrendPoint, error)
	GetTopProducts(branchID uuid.UUID, days, limit int) ([]repository.ProductSalesData, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
}

func NewReportService(reportRepo repository.ReportRepository) ReportService {
	return &reportService{reportRepo: reportRepo}
}

func (s *reportService) GetDailySummary(branchID uuid.UUID, date time.Time) (*repository.DailySummary, error) {
	return s.reportRepo.GetDailySummary(branchID, date)
}

func (s *reportService) GetSalesTrend(branchID uuid.UUID, days int) ([]repository.SalesTrendPoint, error) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)
	return s.reportRepo.GetSalesTrend(branchID, startDate, endDate)
}

func (s *reportService) GetTopProducts(branchID uuid.UUID, days, limit int) ([]repository.ProductSalesData, error) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)
	if limit <= 0 {
		limit = 10
	}
	return s.reportRepo.GetTopProducts(branchID, startDate, endDate, limit)
}
