// Package domain defines the core records of the lending book.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a borrower with zero or more loans.
type Client struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IDNumber  string    `json:"id_number" db:"id_number"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	Address   string    `json:"address" db:"address"`
	JoinDate  time.Time `json:"join_date" db:"join_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type LoanStatus string

const (
	LoanStatusPending LoanStatus = "pending"
	LoanStatusPaid    LoanStatus = "paid"
	LoanStatusOverdue LoanStatus = "overdue"
)

// Loan is a disbursed loan. TermMonths == 0 marks an indefinite,
// interest-only loan with no amortization schedule and no total repayment.
type Loan struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	ClientID       uuid.UUID        `json:"client_id" db:"client_id"`
	Amount         decimal.Decimal  `json:"amount" db:"amount"`
	InterestRate   decimal.Decimal  `json:"interest_rate" db:"interest_rate"` // APR percent
	TermMonths     int              `json:"term_months" db:"term_months"`
	StartDate      time.Time        `json:"start_date" db:"start_date"`
	Status         LoanStatus       `json:"status" db:"status"`
	MonthlyPayment decimal.Decimal  `json:"monthly_payment" db:"monthly_payment"`
	TotalRepayment *decimal.Decimal `json:"total_repayment,omitempty" db:"total_repayment"`
	PaymentsMade   int              `json:"payments_made" db:"payments_made"`
	SignatureURL   *string          `json:"signature_url,omitempty" db:"signature_url"`
	ContractPDFURL *string          `json:"contract_pdf_url,omitempty" db:"contract_pdf_url"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Indefinite reports whether the loan is open-ended (interest-only).
func (l *Loan) Indefinite() bool {
	return l.TermMonths == 0
}

type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "pending"
	RequestStatusUnderReview RequestStatus = "under_review"
)

// LoanRequest is an applicant-submitted request. Approval consumes the
// request and materializes a Client plus Loan pair; denial deletes it.
type LoanRequest struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	IDNumber     string          `json:"id_number" db:"id_number"`
	Phone        string          `json:"phone" db:"phone"`
	Email        string          `json:"email" db:"email"`
	Address      string          `json:"address" db:"address"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	TermMonths   int             `json:"term_months" db:"term_months"`
	IDFrontURL   *string         `json:"id_front_url,omitempty" db:"id_front_url"`
	IDBackURL    *string         `json:"id_back_url,omitempty" db:"id_back_url"`
	SignatureURL *string         `json:"signature_url,omitempty" db:"signature_url"`
	Status       RequestStatus   `json:"status" db:"status"`
	RequestDate  time.Time       `json:"request_date" db:"request_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

type EntryType string

const (
	EntryTypeIncome            EntryType = "income"
	EntryTypeExpense           EntryType = "expense"
	EntryTypeCapitalInjection  EntryType = "capital_injection"
	EntryTypeCapitalWithdrawal EntryType = "capital_withdrawal"
)

// AccountingEntry is a manual ledger line maintained by an operator.
type AccountingEntry struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Type        EntryType       `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	EntryDate   time.Time       `json:"entry_date" db:"entry_date"`
	CreatedBy   *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// AppMeta holds key/value configuration rows such as initial_capital.
type AppMeta struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	MetaKeyInitialCapital = "initial_capital"
	MetaKeyAnnualRate     = "annual_interest_rate"
)

type OperatorRole string

const (
	OperatorRoleAdmin OperatorRole = "admin"
	OperatorRoleStaff OperatorRole = "staff"
)

// Operator is a back-office user of the system.
type Operator struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Email         string       `json:"email" db:"email"`
	PasswordHash  string       `json:"-" db:"password_hash"`
	Name          string       `json:"name" db:"name"`
	Role          OperatorRole `json:"role" db:"role"`
	TOTPSecret    *string      `json:"-" db:"totp_secret"`
	IsTOTPEnabled bool         `json:"is_totp_enabled" db:"is_totp_enabled"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	LastLogin     *time.Time   `json:"last_login,omitempty" db:"last_login"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
