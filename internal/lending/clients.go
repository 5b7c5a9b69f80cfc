package lending

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"microlend/internal/domain"
	"microlend/internal/realtime"
	"microlend/pkg/errors"
)

// ClientWithLoans is the detail view: the client plus their full loan
// history, newest first.
type ClientWithLoans struct {
	Client *domain.Client `json:"client"`
	Loans  []*domain.Loan `json:"loans"`
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*ClientWithLoans, error) {
	client, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	loans, err := s.loans.ListByClient(ctx, id)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	for _, loan := range loans {
		loan.Status = EffectiveStatus(loan, now)
	}

	return &ClientWithLoans{Client: client, Loans: loans}, nil
}

func (s *Service) ListClients(ctx context.Context, search string, limit, offset int) ([]*domain.Client, error) {
	return s.clients.List(ctx, search, limit, offset)
}

// UpdateClientInput carries the editable contact fields. The document
// number is immutable once the client exists.
type UpdateClientInput struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Phone   string `json:"phone" validate:"required,min=7,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"required,min=5,max=250"`
}

func (s *Service) UpdateClient(ctx context.Context, id uuid.UUID, input *UpdateClientInput) (*domain.Client, error) {
	client, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	client.Name = strings.TrimSpace(input.Name)
	client.Phone = strings.TrimSpace(input.Phone)
	client.Email = strings.TrimSpace(input.Email)
	client.Address = strings.TrimSpace(input.Address)

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}

	s.publish(realtime.ClientUpdated(client))
	return client, nil
}

// DeleteClient removes a client with no outstanding loans. Clients with an
// active loan cannot be deleted; settle or archive the loans first.
func (s *Service) DeleteClient(ctx context.Context, id uuid.UUID) error {
	active, err := s.loans.CountActiveByClient(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return errors.ErrClientHasActiveLoans
	}

	if err := s.clients.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(realtime.ClientDeleted(id))

	s.logger.Info("Client deleted", map[string]interface{}{
		"client_id": id.String(),
	})

	return nil
}
