package service

import (
	"fmt"
	"log"
	"os"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleItemRequest struct {
	ProductID    string          `json:"product_id" validate:"required,uuid"`
	Quantity     int             `json:"quantity" validate:"required,gt=0"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

type SalePaymentRequest struct {
	Method    model.PaymentMethod `json:"method" validate:"required,oneof=CASH CARD TRANSFER QR"`
	Amount    decimal.Decimal     `json:"amount"`
	Reference string              `json:"reference"`
	AuthCode  string              `json:"auth_code"`
	CardBrand string              `json:"card_brand"`
	CardLast4 string              `json:"card_last4"`
}

type CreateSaleRequest struct {
	SessionID  string  `json:"session_id" validate:"required,uuid"`
	CustomerID *string `json:"customer_id" validate:"omitempty,uuid"`
	SellerID   *string `json:"seller_id" validate:"omitempty,uuid"`

	Items    []SaleItemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments []SalePaymentRequest `json:"payments" validate:"required,min=1,dive"`

	Discount *DiscountRequest `json:"discount"`

	PointsRedeemed int64           `json:"points_redeemed"`
	CreditUsed     decimal.Decimal `json:"credit_used"`
	ChangeAsCredit bool            `json:"change_as_credit"`

	// InvoiceType forces the fiscal document type instead of deriving
	// it from the branch and customer conditions. Type A data
	// requirements still apply.
	InvoiceType model.InvoiceType `json:"invoice_type" validate:"omitempty,oneof=A B C"`
}

// SaleConfig holds the loyalty earn/redeem policy knobs.
type SaleConfig struct {
	// EarnDivisor: one point earned per this much spent
	EarnDivisor decimal.Decimal
	// PointValue: peso value of one redeemed point
	PointValue decimal.Decimal
}

func SaleConfigFromEnv() SaleConfig {
	cfg := SaleConfig{
		EarnDivisor: decimal.NewFromInt(100),
		PointValue:  decimal.NewFromInt(1),
	}
	if v := os.Getenv("LOYALTY_EARN_DIVISOR"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.EarnDivisor = d
		}
	}
	if v := os.Getenv("LOYALTY_POINT_VALUE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.PointValue = d
		}
	}
	return cfg
}

type SaleService interface {
	CreateSale(req *CreateSaleRequest, userID string) (*model.Sale, error)
	GetSaleByID(id uuid.UUID) (*model.Sale, error)
	GetAllSales() ([]model.Sale, error)
	GetSalesBySession(sessionID uuid.UUID) ([]model.Sale, error)
	GetSalesByBranchAndDate(branchID uuid.UUID, date time.Time) ([]model.Sale, error)
}

type saleService struct {
	db           *gorm.DB
	saleRepo     repository.SaleRepository
	productRepo  repository.ProductRepository
	stockRepo    repository.StockRepository
	ledgerRepo   repository.LedgerRepository
	customerRepo repository.CustomerRepository
	sequenceRepo repository.SequenceRepository
	userRepo     repository.UserRepository
	discounts    DiscountPolicy
	invoices     InvoiceService
	alerts       AlertService
	wsHub        *ws.Hub
	cfg          SaleConfig
}

func NewSaleService(
	db *gorm.DB,
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	ledgerRepo repository.LedgerRepository,
	customerRepo repository.CustomerRepository,
	sequenceRepo repository.SequenceRepository,
	userRepo repository.UserRepository,
	discounts DiscountPolicy,
	invoices InvoiceService,
	alerts AlertService,
	hub *ws.Hub,
	cfg SaleConfig,
) SaleService {
	return &saleService{
		db:           db,
		saleRepo:     saleRepo,
		productRepo:  productRepo,
		stockRepo:    stockRepo,
		ledgerRepo:   ledgerRepo,
		customerRepo: customerRepo,
		sequenceRepo: sequenceRepo,
		userRepo:     userRepo,
		discounts:    discounts,
		invoices:     invoices,
		alerts:       alerts,
		wsHub:        hub,
		cfg:          cfg,
	}
}

type lowStockNotice struct {
	product *model.Product
	onHand  int
}

// CreateSale commits a priced sale across stock, payments and customer
// ledgers as one atomic unit. If any step fails, nothing persists.
// Invoice generation and realtime events run post-commit and cannot
// un-commit the sale.
func (s *saleService) CreateSale(req *CreateSaleRequest, userID string) (*model.Sale, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apperr.Validation("invalid session_id")
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid acting user")
	}
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		return nil, apperr.Validation("acting user not found")
	}

	var (
		sale     *model.Sale
		customer *model.Customer
		branch   model.Branch
		lowStock []lowStockNotice
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 1. Register session must be OPEN
		var session model.RegisterSession
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			return apperr.Validation("register session not found")
		}
		if session.Status != model.SessionOpen {
			return apperr.Rule(apperr.CodeSessionNotOpen, "register session is not open")
		}
		if err := tx.First(&branch, "id = ?", session.BranchID).Error; err != nil {
			return err
		}

		// 2. Lock the customer for balance checks
		if req.CustomerID != nil {
			customerID, err := uuid.Parse(*req.CustomerID)
			if err != nil {
				return apperr.Validation("invalid customer_id")
			}
			customer, err = s.customerRepo.FindForUpdate(tx, customerID)
			if err != nil {
				return apperr.Validation("customer not found")
			}
		}
		if (req.PointsRedeemed > 0 || req.CreditUsed.IsPositive() || req.ChangeAsCredit) && customer == nil {
			return apperr.Rule(apperr.CodeCustomerRequired, "points, credit and change-as-credit require a customer")
		}
		if req.PointsRedeemed < 0 || req.CreditUsed.IsNegative() {
			return apperr.Validation("points_redeemed and credit_used cannot be negative")
		}

		// 3. Price every line
		products := make([]*model.Product, len(req.Items))
		items := make([]model.SaleItem, len(req.Items))
		subtotal := decimal.Zero
		taxTotal := decimal.Zero
		for i, line := range req.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return apperr.Validation("invalid product_id")
			}
			var product model.Product
			if err := tx.First(&product, "id = ?", productID).Error; err != nil {
				return apperr.Validation("product %s not found", line.ProductID)
			}
			if line.LineDiscount.IsNegative() {
				return apperr.Validation("line discount cannot be negative")
			}

			item := priceLine(&product, line.Quantity, line.LineDiscount)
			if item.LineTotal.IsNegative() {
				return apperr.Rule(apperr.CodeNegativeTotal, "line discount exceeds line amount")
			}

			products[i] = &product
			items[i] = item
			subtotal = subtotal.Add(item.LineTotal)
			taxTotal = taxTotal.Add(item.TaxAmount)
		}

		// 4. Resolve the sale-level discount
		resolution, err := s.discounts.Resolve(req.Discount, actor, customer, subtotal)
		if err != nil {
			return err
		}

		// 5. Totals. total = subtotal - discount - pointsValue - creditUsed
		pointsValue := decimal.NewFromInt(req.PointsRedeemed).Mul(s.cfg.PointValue)
		total := subtotal.Sub(resolution.Amount).Sub(pointsValue).Sub(req.CreditUsed)
		if total.IsNegative() {
			return apperr.Rule(apperr.CodeNegativeTotal, "sale total cannot be negative")
		}

		// 6. Validate payments and require full cover
		payments := make([]model.SalePayment, len(req.Payments))
		paid := decimal.Zero
		for i, p := range req.Payments {
			if !p.Amount.IsPositive() {
				return apperr.Rule(apperr.CodeInvalidPayment, "payment amounts must be positive")
			}
			switch p.Method {
			case model.PaymentCard:
				if p.AuthCode == "" {
					return apperr.Rule(apperr.CodeInvalidPayment, "card payments require an authorization code")
				}
			case model.PaymentTransfer, model.PaymentQR:
				if p.Reference == "" {
					return apperr.Rule(apperr.CodeInvalidPayment, "%s payments require a reference", p.Method)
				}
			}
			payments[i] = model.SalePayment{
				Method:    p.Method,
				Amount:    p.Amount,
				Reference: p.Reference,
				AuthCode:  p.AuthCode,
				CardBrand: p.CardBrand,
				CardLast4: p.CardLast4,
			}
			paid = paid.Add(p.Amount)
		}
		if paid.LessThan(total) {
			return apperr.Rule(apperr.CodeInsufficientPayment,
				"payments cover %s of %s", paid.StringFixed(2), total.StringFixed(2))
		}

		// 7. Assemble and persist the sale
		seq, err := s.sequenceRepo.Next(tx, branch.ID, model.DocTypeSale)
		if err != nil {
			return err
		}
		number := fmt.Sprintf("%s%s%06d", session.BusinessDate.Format("20060102"), branch.Code, seq)

		change := paid.Sub(total)
		changeCredited := decimal.Zero
		if req.ChangeAsCredit && change.IsPositive() {
			changeCredited = change
		}

		pointsEarned := int64(0)
		if customer != nil && total.IsPositive() {
			pointsEarned = total.Div(s.cfg.EarnDivisor).Floor().IntPart()
		}

		sale = &model.Sale{
			Number:                number,
			BranchID:              branch.ID,
			RegisterCode:          session.RegisterCode,
			SessionID:             session.ID,
			SellerID:              nil,
			Subtotal:              subtotal,
			DiscountType:          resolution.Type,
			DiscountPercent:       resolution.Percent,
			DiscountAmount:        resolution.Amount,
			DiscountReason:        resolution.Reason,
			DiscountAppliedByID:   resolution.AppliedByID,
			DiscountApprovedByID:  resolution.ApprovedByID,
			TaxAmount:             taxTotal,
			TotalAmount:           total,
			PointsEarned:          pointsEarned,
			PointsRedeemed:        req.PointsRedeemed,
			PointsRedemptionValue: pointsValue,
			CreditUsed:            req.CreditUsed,
			ChangeCredited:        changeCredited,
			Status:                model.SaleCompleted,
			Items:                 items,
			Payments:              payments,
		}
		if customer != nil {
			sale.CustomerID = &customer.ID
		}
		if req.SellerID != nil {
			sellerID, err := uuid.Parse(*req.SellerID)
			if err != nil {
				return apperr.Validation("invalid seller_id")
			}
			sale.SellerID = &sellerID
		}
		sale.CreatedBy = userID
		sale.UpdatedBy = userID

		if err := s.saleRepo.Create(tx, sale); err != nil {
			return err
		}

		// 8. Decrement stock, one movement per line
		for i, line := range items {
			product := products[i]
			stock, err := s.productRepo.GetBranchStock(tx, branch.ID, product.ID)
			if err != nil {
				return err
			}
			if stock.OnHand < line.Quantity {
				return apperr.Rule(apperr.CodeInsufficientStock,
					"insufficient stock for %s: %d on hand, %d requested", product.Name, stock.OnHand, line.Quantity)
			}
			newOnHand := stock.OnHand - line.Quantity
			if err := s.productRepo.UpdateOnHand(tx, stock.ID, newOnHand, userID); err != nil {
				return err
			}
			movement := &model.StockMovement{
				BranchID:    branch.ID,
				ProductID:   product.ID,
				Type:        model.MovementSale,
				Quantity:    -line.Quantity,
				StockBefore: stock.OnHand,
				StockAfter:  newOnHand,
				SaleID:      &sale.ID,
			}
			movement.CreatedBy = userID
			if err := s.stockRepo.CreateMovement(tx, movement); err != nil {
				return err
			}
			if newOnHand <= product.LowStockThreshold {
				lowStock = append(lowStock, lowStockNotice{product: product, onHand: newOnHand})
			}
		}

		// 9. Customer ledgers: redeem, earn, credit, change-as-credit
		if customer != nil {
			if err := s.applyCustomerLedgers(tx, sale, customer, userID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects: observable, never able to fail the sale.
	for _, notice := range lowStock {
		s.alerts.Raise(model.AlertLowStock, model.SeverityWarning, &branch.ID,
			"product", &notice.product.ID,
			fmt.Sprintf("Low stock: %s", notice.product.Name),
			fmt.Sprintf("%d units remaining at branch %s", notice.onHand, branch.Code))
	}
	if s.wsHub != nil {
		go s.wsHub.Publish("sale_created", map[string]interface{}{
			"id":     sale.ID,
			"number": sale.Number,
			"branch": branch.Code,
			"total":  sale.TotalAmount,
		})
	}
	if s.invoices != nil {
		go s.triggerInvoice(sale.ID, req.InvoiceType)
	}

	return sale, nil
}

// triggerInvoice is the decoupled post-commit invoice hand-off. It has
// its own error boundary: failures are logged and alerted, never
// propagated to the committed sale.
func (s *saleService) triggerInvoice(saleID uuid.UUID, invoiceType model.InvoiceType) {
	if _, err := s.invoices.GenerateForSale(saleID, invoiceType); err != nil {
		log.Printf("invoice: generation for sale %s failed: %v", saleID, err)
		s.alerts.Raise(model.AlertInvoiceFailed, model.SeverityHigh, nil, "sale", &saleID,
			"Invoice generation failed", err.Error())
	}
}

func (s *saleService) applyCustomerLedgers(tx *gorm.DB, sale *model.Sale, customer *model.Customer, userID string) error {
	if sale.PointsRedeemed > 0 {
		if customer.PointsBalance < sale.PointsRedeemed {
			return apperr.Rule(apperr.CodeInsufficientPoints,
				"customer has %d points, %d requested", customer.PointsBalance, sale.PointsRedeemed)
		}
		customer.PointsBalance -= sale.PointsRedeemed
		entry := &model.LoyaltyTransaction{
			CustomerID:   customer.ID,
			Type:         model.LoyaltyRedeem,
			Points:       -sale.PointsRedeemed,
			BalanceAfter: customer.PointsBalance,
			SaleID:       &sale.ID,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendLoyalty(tx, entry); err != nil {
			return err
		}
	}

	if sale.PointsEarned > 0 {
		customer.PointsBalance += sale.PointsEarned
		entry := &model.LoyaltyTransaction{
			CustomerID:   customer.ID,
			Type:         model.LoyaltyEarn,
			Points:       sale.PointsEarned,
			BalanceAfter: customer.PointsBalance,
			SaleID:       &sale.ID,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendLoyalty(tx, entry); err != nil {
			return err
		}
	}

	if sale.CreditUsed.IsPositive() {
		if customer.CreditBalance.LessThan(sale.CreditUsed) {
			return apperr.Rule(apperr.CodeInsufficientCredit,
				"customer has %s credit, %s requested", customer.CreditBalance.StringFixed(2), sale.CreditUsed.StringFixed(2))
		}
		customer.CreditBalance = customer.CreditBalance.Sub(sale.CreditUsed)
		entry := &model.CreditTransaction{
			CustomerID:   customer.ID,
			Type:         model.CreditDebit,
			Amount:       sale.CreditUsed.Neg(),
			BalanceAfter: customer.CreditBalance,
			SaleID:       &sale.ID,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendCredit(tx, entry); err != nil {
			return err
		}
	}

	if sale.ChangeCredited.IsPositive() {
		customer.CreditBalance = customer.CreditBalance.Add(sale.ChangeCredited)
		entry := &model.CreditTransaction{
			CustomerID:   customer.ID,
			Type:         model.CreditCredit,
			Amount:       sale.ChangeCredited,
			BalanceAfter: customer.CreditBalance,
			SaleID:       &sale.ID,
			Note:         "change granted as credit",
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendCredit(tx, entry); err != nil {
			return err
		}
	}

	return s.customerRepo.UpdateBalances(tx, customer)
}

// priceLine computes a line's net/tax/total. Tax-inclusive products
// carry the tax inside the price (net = gross / (1+rate)); exclusive
// ones add it on top.
func priceLine(product *model.Product, quantity int, lineDiscount decimal.Decimal) model.SaleItem {
	qty := decimal.NewFromInt(int64(quantity))
	base := product.Price.Mul(qty).Sub(lineDiscount)

	var taxAmount, lineTotal decimal.Decimal
	if product.TaxInclusive {
		lineTotal = base
		net := base.Div(decimal.NewFromInt(1).Add(product.TaxRate)).Round(2)
		taxAmount = base.Sub(net)
	} else {
		taxAmount = base.Mul(product.TaxRate).Round(2)
		lineTotal = base.Add(taxAmount)
	}

	return model.SaleItem{
		ProductID:    product.ID,
		Description:  product.Name,
		Quantity:     quantity,
		UnitPrice:    product.Price,
		LineDiscount: lineDiscount,
		TaxRate:      product.TaxRate,
		TaxAmount:    taxAmount,
		LineTotal:    lineTotal,
	}
}

func (s *saleService) GetSaleByID(id uuid.UUID) (*model.Sale, error) {
	return s.saleRepo.FindByID(id)
}

func (s *saleService) GetAllSales() ([]model.Sale, error) {
	return s.saleRepo.FindAll()
}

func (s *saleService) GetSalesBySession(sessionID uuid.UUID) ([]model.Sale, error) {
	return s.saleRepo.FindBySession(sessionID)
}

func (s *saleService) GetSalesByBranchAndDate(branchID uuid.UUID, date time.Time) ([]model.Sale, error) {
	return s.saleRepo.FindByBranchAndDate(branchID, date)
}

// businessDateOf truncates a time to its operating day.
func businessDateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
