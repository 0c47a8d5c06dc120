package addresses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

// Service stores delivery addresses and resolves them for checkout.
// Guest-created addresses carry no owner; user-created ones are private
// to that user.
type Service interface {
	Create(ctx context.Context, id identity.Identity, input CreateInput) (*models.Address, error)
	// Resolve loads an address for the given identity, enforcing
	// ownership on user-owned rows.
	Resolve(ctx context.Context, id identity.Identity, addressID uuid.UUID) (*models.Address, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}

// CreateInput is the address payload accepted from the HTTP layer.
type CreateInput struct {
	Recipient  string
	Phone      string
	Line1      string
	Line2      string
	City       string
	District   string
	PostalCode string
}

type service struct {
	repo Repository
}

// NewService builds an address service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, id identity.Identity, input CreateInput) (*models.Address, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	address := &models.Address{
		ID:         uuid.New(),
		Recipient:  input.Recipient,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		District:   input.District,
		PostalCode: input.PostalCode,
	}
	if id.IsUser() {
		address.UserID = id.UserID
	}

	if err := s.repo.Create(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "create address")
	}
	return address, nil
}

func (s *service) Resolve(ctx context.Context, id identity.Identity, addressID uuid.UUID) (*models.Address, error) {
	address, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load address")
	}

	if address.UserID != nil {
		if !id.IsUser() || *id.UserID != *address.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
	}
	return address, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "list addresses")
	}
	return list, nil
}
