package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/realtime"
	"microlend/pkg/errors"
)

// CreateEntryInput records one manual ledger movement.
type CreateEntryInput struct {
	Type        domain.EntryType `json:"type" validate:"required,oneof=income expense capital_injection capital_withdrawal"`
	Amount      decimal.Decimal  `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"required,min=3,max=250"`
	EntryDate   *time.Time       `json:"entry_date,omitempty"`
}

func (s *Service) CreateEntry(ctx context.Context, input *CreateEntryInput, createdBy uuid.UUID) (*domain.AccountingEntry, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", errors.ErrInvalidLoanInput)
	}

	now := time.Now().UTC()
	entryDate := now
	if input.EntryDate != nil {
		entryDate = input.EntryDate.UTC()
	}

	entry := &domain.AccountingEntry{
		ID:          uuid.New(),
		Type:        input.Type,
		Amount:      input.Amount,
		Description: strings.TrimSpace(input.Description),
		EntryDate:   entryDate,
		CreatedBy:   &createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.accounting.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(realtime.EntryCreated(entry))

	s.logger.Info("Accounting entry recorded", map[string]interface{}{
		"entry_id": entry.ID.String(),
		"type":     string(entry.Type),
		"amount":   entry.Amount.String(),
	})

	return entry, nil
}

// UpdateEntry rewrites a ledger line in place. The original author stays
// on record; edits do not reassign created_by.
func (s *Service) UpdateEntry(ctx context.Context, id uuid.UUID, input *CreateEntryInput) (*domain.AccountingEntry, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", errors.ErrInvalidLoanInput)
	}

	entry, err := s.accounting.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.Type = input.Type
	entry.Amount = input.Amount
	entry.Description = strings.TrimSpace(input.Description)
	if input.EntryDate != nil {
		entry.EntryDate = input.EntryDate.UTC()
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.accounting.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(realtime.EntryUpdated(entry))

	s.logger.Info("Accounting entry edited", map[string]interface{}{
		"entry_id": entry.ID.String(),
	})

	return entry, nil
}

func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	if err := s.accounting.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(realtime.EntryDeleted(id))
	return nil
}

// SetInitialCapital stores the opening balance the working capital is
// computed from.
func (s *Service) SetInitialCapital(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: initial capital must not be negative", errors.ErrInvalidLoanInput)
	}

	if err := s.meta.Set(ctx, domain.MetaKeyInitialCapital, amount.String()); err != nil {
		return err
	}

	s.publish(realtime.MetaUpdated(&domain.AppMeta{
		Key:       domain.MetaKeyInitialCapital,
		Value:     amount.String(),
		UpdatedAt: time.Now().UTC(),
	}))

	return nil
}

// SetAnnualRate updates the rate applied to new originations. Existing
// loans keep the rate they were written at.
func (s *Service) SetAnnualRate(ctx context.Context, ratePercent decimal.Decimal) error {
	if ratePercent.IsNegative() {
		return fmt.Errorf("%w: annual rate must not be negative", errors.ErrInvalidLoanInput)
	}

	if err := s.meta.Set(ctx, domain.MetaKeyAnnualRate, ratePercent.String()); err != nil {
		return err
	}

	s.publish(realtime.MetaUpdated(&domain.AppMeta{
		Key:       domain.MetaKeyAnnualRate,
		Value:     ratePercent.String(),
		UpdatedAt: time.Now().UTC(),
	}))

	return nil
}
