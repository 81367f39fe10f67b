// Package apperr defines the error taxonomy shared by the POS core:
// validation errors (bad input, rejected before any side effect),
// business rule errors (stable machine-readable reason codes, no
// partial effect), and gateway errors (tagged retryable or not, they
// drive the fiscal state machines and never fail a committed sale).
package apperr

import (
	"errors"
	"fmt"
)

// Business rule reason codes
const (
	CodeSessionNotOpen          = "SESSION_NOT_OPEN"
	CodeSessionClosed           = "SESSION_CLOSED"
	CodeSessionAlreadyOpen      = "SESSION_ALREADY_OPEN"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInsufficientPoints      = "INSUFFICIENT_POINTS"
	CodeInsufficientCredit      = "INSUFFICIENT_CREDIT"
	CodeInsufficientPayment     = "INSUFFICIENT_PAYMENT"
	CodeInvalidPayment          = "INVALID_PAYMENT"
	CodeNegativeTotal           = "NEGATIVE_TOTAL"
	CodeDiscountNotAllowed      = "DISCOUNT_NOT_ALLOWED"
	CodeDiscountReasonRequired  = "DISCOUNT_REASON_REQUIRED"
	CodeDiscountLimitExceeded   = "DISCOUNT_LIMIT_EXCEEDED"
	CodeDiscountPINRejected     = "DISCOUNT_PIN_REJECTED"
	CodeSaleAlreadyVoided       = "SALE_ALREADY_VOIDED"
	CodeVoidWindowExpired       = "VOID_WINDOW_EXPIRED"
	CodeVoidNotAuthorized       = "VOID_NOT_AUTHORIZED"
	CodeFiscalDataMissing       = "FISCAL_DATA_MISSING"
	CodeCustomerRequired        = "CUSTOMER_REQUIRED"
	CodeInvoiceNotRetriable     = "INVOICE_NOT_RETRIABLE"
)

// ValidationError rejects malformed or missing input before any side
// effect takes place.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// BusinessRuleError rejects an operation with a stable reason code and
// a human message. No partial effect remains once it is returned.
type BusinessRuleError struct {
	Code    string
	Message string
}

func (e *BusinessRuleError) Error() string { return e.Message }

func Rule(code, format string, args ...interface{}) *BusinessRuleError {
	return &BusinessRuleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// GatewayError wraps a fiscal gateway failure. Retryable failures
// (timeouts, rate limits, transient 5xx) keep the document PENDING up
// to the attempt ceiling; permanent ones fail it immediately.
type GatewayError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
	}
	return "gateway: " + e.Message
}

func Gateway(code, message string, retryable bool) *GatewayError {
	return &GatewayError{Code: code, Message: message, Retryable: retryable}
}

// IsRetryable reports whether err is a gateway error tagged retryable.
func IsRetryable(err error) bool {
	var g *GatewayError
	return errors.As(err, &g) && g.Retryable
}

// RuleCode extracts the reason code from a BusinessRuleError, or "".
func RuleCode(err error) string {
	var b *BusinessRuleError
	if errors.As(err, &b) {
		return b.Code
	}
	return ""
}
