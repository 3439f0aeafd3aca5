package repository

import (
	"context"
	"sync"

	"github.com/souqline/fulfillment-service/internal/models"
)

// MemoryLedger is an in-memory Ledger for tests and local development. It
// mirrors the single-document atomicity of the real backends: every method
// runs under one lock.
type MemoryLedger struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	secrets  map[string]*models.OrderSecret
	products map[string]*models.Product
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		orders:   make(map[string]*models.Order),
		secrets:  make(map[string]*models.OrderSecret),
		products: make(map[string]*models.Product),
	}
}

// PutOrder seeds an order document.
func (l *MemoryLedger) PutOrder(order *models.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	l.orders[order.ID] = &cp
}

// PutProduct seeds a product document.
func (l *MemoryLedger) PutProduct(product *models.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *product
	l.products[product.ID] = &cp
}

func (l *MemoryLedger) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (l *MemoryLedger) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	orders := make([]*models.Order, 0)
	for _, order := range l.orders {
		if order.VendorID != vendorID {
			continue
		}
		cp := *order
		cp.Items = append([]models.OrderItem(nil), order.Items...)
		orders = append(orders, &cp)
	}
	return orders, nil
}

func (l *MemoryLedger) DeleteOrder(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[id]; !ok {
		return ErrNotFound
	}
	delete(l.orders, id)
	return nil
}

func (l *MemoryLedger) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	return nil
}

func (l *MemoryLedger) CompareAndSetOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (l *MemoryLedger) GetSecret(ctx context.Context, orderID string) (*models.OrderSecret, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	secret, ok := l.secrets[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *secret
	return &cp, nil
}

func (l *MemoryLedger) CreateSecret(ctx context.Context, secret *models.OrderSecret) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.secrets[secret.OrderID]; ok {
		return ErrSecretExists
	}
	cp := *secret
	l.secrets[secret.OrderID] = &cp
	return nil
}

func (l *MemoryLedger) RedeemSecret(ctx context.Context, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	secret, ok := l.secrets[orderID]
	if !ok {
		return false, ErrNotFound
	}
	if secret.Status != models.SecretStatusPending {
		return false, nil
	}
	secret.Status = models.SecretStatusRedeemed
	return true, nil
}

func (l *MemoryLedger) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	product, ok := l.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *product
	return &cp, nil
}

func (l *MemoryLedger) SetProductStock(ctx context.Context, id string, stock int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	product, ok := l.products[id]
	if !ok {
		return ErrNotFound
	}
	product.Stock = stock
	return nil
}
