package repository

import (
	"context"
	"errors"

	"github.com/souqline/fulfillment-service/internal/models"
)

var (
	// ErrNotFound reports that the requested document does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrSecretExists reports that a secret has already been issued for
	// the order.
	ErrSecretExists = errors.New("repository: secret already exists for order")
)

// Ledger is the persistence boundary of the fulfillment workflow. Every
// operation is atomic at single-document granularity; sequencing of
// multi-document updates is the engine's responsibility.
type Ledger interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID string) ([]*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	// CompareAndSetOrderStatus flips the order's status only if it
	// currently holds from. Returns false, nil when the order exists but
	// holds a different status.
	CompareAndSetOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)

	GetSecret(ctx context.Context, orderID string) (*models.OrderSecret, error)
	// CreateSecret stores a new secret record. ErrSecretExists when one
	// has already been issued for the order; the stored secret is never
	// overwritten.
	CreateSecret(ctx context.Context, secret *models.OrderSecret) error
	// RedeemSecret atomically flips the secret's status from pending to
	// redeemed. Returns false, nil when it was already redeemed.
	RedeemSecret(ctx context.Context, orderID string) (bool, error)

	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProductStock(ctx context.Context, id string, stock int) error
}

// OrderCache defines read-through caching for order documents.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
}
