package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
)

const msgStoreNotFound = "فروشگاه یافت نشد"

type storeRepository interface {
	FindActiveByDomain(ctx context.Context, domain string) (*models.Store, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

// Service resolves tenants.
type Service interface {
	ResolveByDomain(ctx context.Context, domain string) (*StoreDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error)
}

type service struct {
	repo storeRepository
}

// NewService builds a store service with the provided repository.
func NewService(repo storeRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ResolveByDomain(ctx context.Context, domain string) (*StoreDTO, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgStoreNotFound)
	}
	store, err := s.repo.FindActiveByDomain(ctx, domain)
	if err != nil {
		return nil, mapLookupError(err, "resolve store by domain")
	}
	return FromModel(store), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load store")
	}
	return FromModel(store), nil
}

func mapLookupError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgStoreNotFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
