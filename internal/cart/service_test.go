package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/pkg/db"
	"github.com/persiamall/storefront/pkg/db/dbtest"
	"github.com/persiamall/storefront/pkg/db/models"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/metrics"
)

func newTestService(t *testing.T) (Service, *gorm.DB, dbtest.Catalog) {
	t.Helper()
	conn := dbtest.Open(t)
	seed := dbtest.SeedCatalog(t, conn, "shop.example.ir", 150000, 5)
	svc, err := NewService(NewRepository(conn), catalog.NewRepository(conn), db.NewFromGorm(conn), metrics.NewCartMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, err)
	return svc, conn, seed
}

func qty(n int) *int { return &n }

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "message: %s", typed.Message())
	return typed
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewService(nil, catalog.NewRepository(conn), db.NewFromGorm(conn), nil, nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), nil, db.NewFromGorm(conn), nil, nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(conn), catalog.NewRepository(conn), nil, nil, nil)
	assert.Error(t, err)
}

func TestGetCartEmpty(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-empty")

	view, err := svc.GetCart(context.Background(), seed.Store.ID, owner)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, view.CartID)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.TotalItems)
	assert.True(t, view.TotalPrice.IsZero())

	again, err := svc.GetCart(context.Background(), seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, view.CartID, again.CartID)
}

func TestGetCartConcurrentFirstAccessCreatesOneCart(t *testing.T) {
	svc, conn, seed := newTestService(t)
	owner := identity.UserOwner(uuid.New())

	ids := make([]uuid.UUID, 8)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			view, err := svc.GetCart(context.Background(), seed.Store.ID, owner)
			if err != nil {
				return err
			}
			ids[i] = view.CartID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("owner_key = ?", owner.Key()).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddItemCreatesLineAndDefaultsQuantity(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-add")

	res, err := svc.AddItem(context.Background(), seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MsgItemAdded, res.Message)
	assert.Equal(t, 1, res.CartTotalItems)
	require.NotNil(t, res.Item)
	assert.Equal(t, "150000", res.Item.UnitPrice.String())
	assert.Equal(t, seed.Instance.SKU, res.Item.ProductInstance.SKU)
	require.NotNil(t, res.Item.ProductInstance.Image)

	view, err := svc.GetCart(context.Background(), seed.Store.ID, owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.TotalItems)
	assert.Equal(t, "150000", view.TotalPrice.String())
}

func TestAddItemMergesExistingLine(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-merge")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	require.NoError(t, err)
	res, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(3)})
	require.NoError(t, err)
	assert.Equal(t, 5, res.CartTotalItems)
	assert.Equal(t, 5, res.Item.Quantity)
	assert.Equal(t, "750000", res.Item.TotalPrice.String())

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
}

func TestAddItemRejectsOverStock(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-stock")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(6)})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "تنها 5 عدد موجود است", typed.Message())

	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(4)})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	typed = requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "حداکثر 1 عدد می‌توانید اضافه کنید", typed.Message())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, details["available"])
	assert.Equal(t, 4, details["in_cart"])
	assert.Equal(t, 1, details["max_addable"])

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalItems, "rejected add must leave the cart unchanged")
}

func TestAddItemOversizedRequestOnExistingLineReportsStock(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-oversized")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(1)})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(9)})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "تنها 5 عدد موجود است", typed.Message())

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-zero")

	for _, n := range []int{0, -3} {
		_, err := svc.AddItem(context.Background(), seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(n)})
		typed := requireCode(t, err, pkgerrors.CodeValidation)
		assert.Equal(t, msgQuantityZero, typed.Message())
	}
}

func TestAddItemProductMustBelongToStoreAndBeActive(t *testing.T) {
	svc, conn, seed := newTestService(t)
	other := dbtest.SeedCatalog(t, conn, "other.example.ir", 1000, 10)
	owner := identity.SessionOwner("tok-scope")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: other.Instance.ID})
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, msgProductAbsent, typed.Message())

	require.NoError(t, conn.Model(&models.ProductInstance{}).Where("id = ?", seed.Instance.ID).Update("is_active", false).Error)
	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAddItemRejectsInvalidOwner(t *testing.T) {
	svc, _, seed := newTestService(t)
	_, err := svc.AddItem(context.Background(), seed.Store.ID, identity.Owner{}, AddItemInput{ProductInstanceID: seed.Instance.ID})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestCartsAreIsolatedPerStoreAndOwner(t *testing.T) {
	svc, conn, seed := newTestService(t)
	other := dbtest.SeedCatalog(t, conn, "second.example.ir", 2000, 10)
	alice := identity.SessionOwner("tok-alice")
	bob := identity.SessionOwner("tok-bob")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, alice, AddItemInput{ProductInstanceID: seed.Instance.ID})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, other.Store.ID, alice, AddItemInput{ProductInstanceID: other.Instance.ID, Quantity: qty(3)})
	require.NoError(t, err)

	first, err := svc.GetCart(ctx, seed.Store.ID, alice)
	require.NoError(t, err)
	second, err := svc.GetCart(ctx, other.Store.ID, alice)
	require.NoError(t, err)
	bobs, err := svc.GetCart(ctx, seed.Store.ID, bob)
	require.NoError(t, err)

	assert.NotEqual(t, first.CartID, second.CartID)
	assert.Equal(t, 1, first.TotalItems)
	assert.Equal(t, 3, second.TotalItems)
	assert.Equal(t, 0, bobs.TotalItems)
}

func TestUpdateItem(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-update")
	ctx := context.Background()

	added, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID})
	require.NoError(t, err)
	itemID := added.Item.ID

	res, err := svc.UpdateItem(ctx, seed.Store.ID, owner, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, MsgCartUpdated, res.Message)
	assert.Equal(t, 4, res.CartTotalItems)
	require.NotNil(t, res.Item)
	assert.Equal(t, 4, res.Item.Quantity)

	_, err = svc.UpdateItem(ctx, seed.Store.ID, owner, itemID, 9)
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "تنها 5 عدد موجود است", typed.Message())

	res, err = svc.UpdateItem(ctx, seed.Store.ID, owner, itemID, 0)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Equal(t, 0, res.CartTotalItems)

	_, err = svc.UpdateItem(ctx, seed.Store.ID, owner, itemID, 1)
	typed = requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, msgItemAbsent, typed.Message())
}

func TestItemMutationsAreScopedToOwnCart(t *testing.T) {
	svc, _, seed := newTestService(t)
	alice := identity.SessionOwner("tok-alice")
	mallory := identity.SessionOwner("tok-mallory")
	ctx := context.Background()

	added, err := svc.AddItem(ctx, seed.Store.ID, alice, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, seed.Store.ID, mallory, added.Item.ID, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = svc.RemoveItem(ctx, seed.Store.ID, mallory, added.Item.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err := svc.GetCart(ctx, seed.Store.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
}

func TestRemoveItem(t *testing.T) {
	svc, _, seed := newTestService(t)
	owner := identity.SessionOwner("tok-remove")
	ctx := context.Background()

	added, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	require.NoError(t, err)

	res, err := svc.RemoveItem(ctx, seed.Store.ID, owner, added.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, MsgItemRemoved, res.Message)
	assert.True(t, res.Removed)
	assert.Equal(t, 0, res.CartTotalItems)

	_, err = svc.RemoveItem(ctx, seed.Store.ID, owner, added.Item.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestClearIsIdempotent(t *testing.T) {
	svc, conn, seed := newTestService(t)
	second := dbtest.SeedInstance(t, conn, seed.Product.ID, "SKU-SECOND", 5000, 3)
	owner := identity.SessionOwner("tok-clear")
	ctx := context.Background()

	res, err := svc.Clear(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, MsgCartCleared, res.Message)

	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: second.ID, Quantity: qty(2)})
	require.NoError(t, err)

	res, err = svc.Clear(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CartTotalItems)

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestGetCartUsesLivePrices(t *testing.T) {
	svc, conn, seed := newTestService(t)
	owner := identity.SessionOwner("tok-price")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.ProductInstance{}).Where("id = ?", seed.Instance.ID).Update("price", 120000).Error)

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "120000", view.Items[0].UnitPrice.String())
	assert.Equal(t, "240000", view.TotalPrice.String())
}

func TestGetCartKeepsLinesMissingFromCatalog(t *testing.T) {
	svc, conn, seed := newTestService(t)
	owner := identity.SessionOwner("tok-orphan")
	ctx := context.Background()

	res, err := svc.AddItem(ctx, seed.Store.ID, owner, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(2)})
	require.NoError(t, err)

	other := dbtest.SeedCatalog(t, conn, "other.example.ir", 1000, 1)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", seed.Product.ID).Update("store_id", other.Store.ID).Error)

	view, err := svc.GetCart(ctx, seed.Store.ID, owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].ProductInstance.Available)
	assert.Equal(t, res.CartTotalItems, view.TotalItems)
	assert.True(t, view.TotalPrice.IsZero())
}

func TestMergeAnonymousCapsAtStock(t *testing.T) {
	svc, conn, seed := newTestService(t)
	second := dbtest.SeedInstance(t, conn, seed.Product.ID, "SKU-MERGE", 1000, 2)
	session := identity.SessionOwner("tok-guest")
	user := identity.UserOwner(uuid.New())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, seed.Store.ID, session, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(4)})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, seed.Store.ID, session, AddItemInput{ProductInstanceID: second.ID, Quantity: qty(2)})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, seed.Store.ID, user, AddItemInput{ProductInstanceID: seed.Instance.ID, Quantity: qty(3)})
	require.NoError(t, err)

	merged, err := svc.MergeAnonymous(ctx, seed.Store.ID, session, user)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	view, err := svc.GetCart(ctx, seed.Store.ID, user)
	require.NoError(t, err)
	byID := map[uuid.UUID]int{}
	for _, line := range view.Items {
		byID[line.ProductInstance.ID] = line.Quantity
	}
	assert.Equal(t, 5, byID[seed.Instance.ID])
	assert.Equal(t, 2, byID[second.ID])

	guest, err := svc.GetCart(ctx, seed.Store.ID, session)
	require.NoError(t, err)
	assert.Empty(t, guest.Items)
}

func TestMergeAnonymousWithoutSessionCart(t *testing.T) {
	svc, _, seed := newTestService(t)
	merged, err := svc.MergeAnonymous(context.Background(), seed.Store.ID, identity.SessionOwner("never-used"), identity.UserOwner(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, 0, merged)
}
