package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/pkg/db"
	"github.com/persiamall/storefront/pkg/db/models"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
)

const (
	MsgItemAdded     = "محصول به سبد خرید اضافه شد"
	MsgCartUpdated   = "سبد خرید به‌روزرسانی شد"
	MsgItemRemoved   = "محصول از سبد حذف شد"
	MsgCartCleared   = "سبد خرید خالی شد"
	msgQuantityZero  = "تعداد باید بیشتر از صفر باشد"
	msgProductAbsent = "محصول یافت نشد"
	msgItemAbsent    = "آیتم سبد خرید یافت نشد"
)

// errConcurrentAdd marks a lost race on ux_cart_items_cart_instance; the
// add is retried once as a merge.
var errConcurrentAdd = errors.New("cart item created concurrently")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart mutations of the storefront.
type Service interface {
	GetCart(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*CartView, error)
	AddItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, input AddItemInput) (*MutationResult, error)
	UpdateItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID, quantity int) (*MutationResult, error)
	RemoveItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID) (*MutationResult, error)
	Clear(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*MutationResult, error)
	MergeAnonymous(ctx context.Context, storeID uuid.UUID, from, to identity.Owner) (int, error)
}

type service struct {
	repo    CartRepository
	catalog catalog.StockRepository
	tx      txRunner
	metrics *metrics.CartMetrics
	logg    *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, catalogRepo catalog.StockRepository, tx txRunner, cartMetrics *metrics.CartMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		tx:      tx,
		metrics: cartMetrics,
		logg:    logg,
	}, nil
}

func (s *service) GetCart(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*CartView, error) {
	if err := validateOwner(storeID, owner); err != nil {
		return nil, err
	}
	cart, err := s.repo.GetOrCreate(ctx, storeID, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductInstanceID)
	}
	snaps, err := s.catalog.SnapshotsByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	return buildView(cart.ID, items, snaps), nil
}

func (s *service) AddItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, input AddItemInput) (result *MutationResult, err error) {
	defer func() { s.observe(ctx, "add", err) }()

	if err := validateOwner(storeID, owner); err != nil {
		return nil, err
	}
	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity <= 0 {
		return nil, quantityError()
	}
	if input.ProductInstanceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductAbsent)
	}

	result, err = s.addItemOnce(ctx, storeID, owner, input.ProductInstanceID, quantity)
	if errors.Is(err, errConcurrentAdd) {
		result, err = s.addItemOnce(ctx, storeID, owner, input.ProductInstanceID, quantity)
	}
	if errors.Is(err, errConcurrentAdd) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "add cart item")
	}
	return result, err
}

// addItemOnce runs the add in one transaction holding the instance row lock
// so stock checks for that instance are serialized.
func (s *service) addItemOnce(ctx context.Context, storeID uuid.UUID, owner identity.Owner, instanceID uuid.UUID, quantity int) (*MutationResult, error) {
	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.catalog.WithTx(tx)

		cart, err := repo.GetOrCreate(ctx, storeID, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		snap, err := products.FindForStore(ctx, storeID, instanceID)
		if err != nil {
			return productLookupError(err)
		}
		stock, err := lockedStock(ctx, products, instanceID)
		if err != nil {
			return err
		}
		snap.Stock = stock
		if quantity > stock {
			return insufficientStock(stock)
		}

		existing, err := repo.FindItemByInstance(ctx, cart.ID, instanceID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := models.CartItem{CartID: cart.ID, ProductInstanceID: instanceID, Quantity: quantity}
			if err := repo.CreateItem(ctx, &item); err != nil {
				if db.IsUniqueViolation(err, "") {
					return errConcurrentAdd
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
			existing = &item
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		default:
			if existing.Quantity+quantity > stock {
				return mergeExceedsStock(stock, existing.Quantity)
			}
			existing.Quantity += quantity
			if err := repo.UpdateItemQuantity(ctx, cart.ID, existing.ID, existing.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		}

		total, err := finish(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		line := newItemView(*existing, *snap)
		result = &MutationResult{Success: true, Message: MsgItemAdded, CartTotalItems: total, Item: &line}
		return nil
	})
	return result, err
}

func (s *service) UpdateItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID, quantity int) (result *MutationResult, err error) {
	defer func() { s.observe(ctx, "update", err) }()

	if err := validateOwner(storeID, owner); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.catalog.WithTx(tx)

		cart, err := repo.GetOrCreate(ctx, storeID, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			return itemLookupError(err)
		}

		if quantity <= 0 {
			if _, err := repo.DeleteItem(ctx, cart.ID, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
			total, err := finish(ctx, repo, cart.ID)
			if err != nil {
				return err
			}
			result = &MutationResult{Success: true, Message: MsgItemRemoved, CartTotalItems: total, Removed: true}
			return nil
		}

		stock, err := lockedStock(ctx, products, item.ProductInstanceID)
		if err != nil {
			return err
		}
		if quantity > stock {
			return insufficientStock(stock)
		}
		if err := repo.UpdateItemQuantity(ctx, cart.ID, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		item.Quantity = quantity

		total, err := finish(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		result = &MutationResult{Success: true, Message: MsgCartUpdated, CartTotalItems: total}
		if snap, err := products.FindForStore(ctx, storeID, item.ProductInstanceID); err == nil {
			snap.Stock = stock
			line := newItemView(*item, *snap)
			result.Item = &line
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID) (result *MutationResult, err error) {
	defer func() { s.observe(ctx, "remove", err) }()

	if err := validateOwner(storeID, owner); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, storeID, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		deleted, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgItemAbsent)
		}
		total, err := finish(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		result = &MutationResult{Success: true, Message: MsgItemRemoved, CartTotalItems: total, Removed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Clear(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (result *MutationResult, err error) {
	defer func() { s.observe(ctx, "clear", err) }()

	if err := validateOwner(storeID, owner); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, storeID, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if _, err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		result = &MutationResult{Success: true, Message: MsgCartCleared, CartTotalItems: 0}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeAnonymous moves the session cart into the user cart of the same
// store. Summed quantities are capped at current stock; lines with no
// stock left are dropped. It returns the number of lines merged.
func (s *service) MergeAnonymous(ctx context.Context, storeID uuid.UUID, from, to identity.Owner) (merged int, err error) {
	defer func() { s.observe(ctx, "merge", err) }()

	if !from.Valid() || !to.Valid() || from.Key() == to.Key() {
		return 0, nil
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.catalog.WithTx(tx)

		source, err := repo.FindByOwner(ctx, storeID, from.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
		}
		items, err := repo.ListItems(ctx, source.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list session cart")
		}
		if len(items) == 0 {
			return nil
		}
		target, err := repo.GetOrCreate(ctx, storeID, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductInstanceID)
		}
		locked, err := products.LockForUpdate(ctx, ids...)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
		}

		for _, item := range items {
			instance, ok := locked[item.ProductInstanceID]
			if !ok || !instance.IsActive {
				continue
			}
			existing, err := repo.FindItemByInstance(ctx, target.ID, item.ProductInstanceID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				qty := min(item.Quantity, instance.StockQuantity)
				if qty <= 0 {
					continue
				}
				if err := repo.CreateItem(ctx, &models.CartItem{CartID: target.ID, ProductInstanceID: item.ProductInstanceID, Quantity: qty}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart item")
			default:
				qty := min(existing.Quantity+item.Quantity, instance.StockQuantity)
				if qty <= existing.Quantity {
					continue
				}
				if err := repo.UpdateItemQuantity(ctx, target.ID, existing.ID, qty); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}
			}
			merged++
		}

		if _, err := repo.ClearItems(ctx, source.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear session cart")
		}
		return repo.Touch(ctx, target.ID)
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

func (s *service) observe(ctx context.Context, op string, err error) {
	if err == nil {
		s.metrics.IncMutation(op, "ok")
		return
	}
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	s.metrics.IncMutation(op, string(code))
	if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
		s.logg.Error(s.logg.WithField(ctx, "cart_op", op), "cart.mutation_failed", err)
	}
}

func validateOwner(storeID uuid.UUID, owner identity.Owner) error {
	if storeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if !owner.Valid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner could not be resolved")
	}
	return nil
}

// lockedStock re-reads stock under a row lock.
func lockedStock(ctx context.Context, products catalog.StockRepository, instanceID uuid.UUID) (int, error) {
	locked, err := products.LockForUpdate(ctx, instanceID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
	}
	instance, ok := locked[instanceID]
	if !ok || !instance.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, msgProductAbsent)
	}
	return instance.StockQuantity, nil
}

func finish(ctx context.Context, repo CartRepository, cartID uuid.UUID) (int, error) {
	if err := repo.Touch(ctx, cartID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	total, err := repo.SumQuantity(ctx, cartID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart items")
	}
	return total, nil
}

func quantityError() error {
	return pkgerrors.New(pkgerrors.CodeValidation, msgQuantityZero).
		WithDetails(map[string]any{"field": "quantity"})
}

func insufficientStock(available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("تنها %d عدد موجود است", available)).
		WithDetails(map[string]any{"available": available})
}

func mergeExceedsStock(available, inCart int) error {
	maxAddable := max(available-inCart, 0)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("حداکثر %d عدد می‌توانید اضافه کنید", maxAddable)).
		WithDetails(map[string]any{"available": available, "in_cart": inCart, "max_addable": maxAddable})
}

func productLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgProductAbsent)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func itemLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgItemAbsent)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
}
