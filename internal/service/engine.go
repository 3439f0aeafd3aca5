package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/events"
	"github.com/souqline/fulfillment-service/internal/metrics"
	"github.com/souqline/fulfillment-service/internal/models"
	"github.com/souqline/fulfillment-service/internal/qrtoken"
	"github.com/souqline/fulfillment-service/internal/repository"
)

var (
	// ErrOrderNotFound reports that the order does not exist.
	ErrOrderNotFound = errors.New("service: order not found")

	// ErrNotPending reports an accept or reject against an order that has
	// already left the Pending state.
	ErrNotPending = errors.New("service: order is not awaiting acceptance")

	// ErrNotAuthenticated is the uniform verification failure. It covers a
	// missing order, a missing secret and a mismatched key without
	// distinguishing them.
	ErrNotAuthenticated = errors.New("service: order could not be authenticated")

	// ErrAlreadyCompleted reports a completion attempt against an order
	// that has already been completed. Stock is not touched again.
	ErrAlreadyCompleted = errors.New("service: order already completed")
)

// AuthEngine owns the order authentication state machine: accept mints the
// single-use secret and QR, verify checks a scanned token read-only, and
// complete redeems the secret, decrements stock and closes the order.
type AuthEngine struct {
	ledger    repository.Ledger
	cache     repository.OrderCache
	publisher events.Publisher
	config    *config.Config
}

func NewAuthEngine(
	ledger repository.Ledger,
	cache repository.OrderCache,
	publisher events.Publisher,
	cfg *config.Config,
) *AuthEngine {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &AuthEngine{
		ledger:    ledger,
		cache:     cache,
		publisher: publisher,
		config:    cfg,
	}
}

// Accept transitions a Pending order to Accepted, minting its single-use
// secret and rendered QR. The secret write is acknowledged before the
// status flips, so a scan that observes Accepted always finds a matching
// secret. Re-invocation never mints a second secret: it finishes the
// missing status write, if any, and returns the stored secret.
func (e *AuthEngine) Accept(ctx context.Context, orderID string) (*models.OrderSecret, error) {
	order, err := e.ledger.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	secret, err := e.ledger.GetSecret(ctx, orderID)
	if err == nil {
		return secret, e.finishAccept(ctx, order)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if order.Status != models.OrderStatusPending {
		return nil, ErrNotPending
	}

	key := uuid.NewString()
	payload := qrtoken.Encode(orderID, key)
	png, err := qrtoken.Render(payload)
	if err != nil {
		return nil, err
	}

	secret = &models.OrderSecret{
		OrderID:   orderID,
		VendorID:  order.VendorID,
		SecretKey: key,
		QRImage:   png,
		Status:    models.SecretStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.ledger.CreateSecret(ctx, secret); err != nil {
		if errors.Is(err, repository.ErrSecretExists) {
			// Lost a race with another device; the winner's secret stands.
			stored, err := e.ledger.GetSecret(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return stored, e.finishAccept(ctx, order)
		}
		return nil, err
	}

	if err := e.finishAccept(ctx, order); err != nil {
		return nil, err
	}

	slog.Info("Order accepted", "order_id", orderID, "vendor_id", order.VendorID)
	metrics.Acceptances.Inc()

	order.Status = models.OrderStatusAccepted
	if err := e.publisher.PublishOrderAccepted(ctx, order); err != nil {
		slog.Error("Failed to publish order accepted event", "order_id", orderID, "error", err)
	}

	return secret, nil
}

// finishAccept performs the status write of Accept. Safe to call on a
// retry where the secret already exists but the status flip was lost.
func (e *AuthEngine) finishAccept(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusPending {
		return nil
	}
	if err := e.ledger.UpdateOrderStatus(ctx, order.ID, models.OrderStatusAccepted); err != nil {
		return err
	}
	e.evict(ctx, order.ID)
	return nil
}

// Reject removes a Pending order outright. No secret is ever created for
// a rejected order.
func (e *AuthEngine) Reject(ctx context.Context, orderID string) error {
	order, err := e.ledger.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	if order.Status != models.OrderStatusPending {
		return ErrNotPending
	}

	if err := e.ledger.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	e.evict(ctx, orderID)

	slog.Info("Order rejected", "order_id", orderID, "vendor_id", order.VendorID)

	if err := e.publisher.PublishOrderRejected(ctx, orderID, order.VendorID); err != nil {
		slog.Error("Failed to publish order rejected event", "order_id", orderID, "error", err)
	}

	return nil
}

// Verify authenticates a scanned token. Read-only: it surfaces the order
// on success and mutates nothing. Every failure mode reports the same
// ErrNotAuthenticated so a caller cannot tell which part mismatched.
func (e *AuthEngine) Verify(ctx context.Context, token models.ScanToken) (*models.Order, error) {
	secret, err := e.ledger.GetSecret(ctx, token.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(secret.SecretKey), []byte(token.SecretKey)) != 1 {
		slog.Info("Scan verification failed", "order_id", token.OrderID)
		return nil, ErrNotAuthenticated
	}

	order, err := e.getOrder(ctx, token.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderStatusAccepted {
		return nil, ErrNotAuthenticated
	}

	EnsureTotals(order)
	slog.Info("Scan verified", "order_id", order.ID, "total_price", order.TotalPrice)
	return order, nil
}

// Complete closes out an authenticated order: it re-verifies the secret,
// claims it with an atomic pending-to-redeemed swap, decrements each line
// item's stock clamped at zero, and finally flips the order to Completed.
// The claim makes completion at-most-once across sessions; stock writes
// are acknowledged before the status write so no reader observes Completed
// alongside stale stock.
func (e *AuthEngine) Complete(ctx context.Context, orderID, secretKey string) (*models.Order, error) {
	secret, err := e.ledger.GetSecret(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(secret.SecretKey), []byte(secretKey)) != 1 {
		return nil, ErrNotAuthenticated
	}

	order, err := e.ledger.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return order, ErrAlreadyCompleted
	case models.OrderStatusAccepted:
	default:
		return nil, ErrNotAuthenticated
	}

	claimed, err := e.ledger.RedeemSecret(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another session redeemed the secret. Finish the interrupted
		// status flip if it was lost, but never touch stock again.
		if _, err := e.ledger.CompareAndSetOrderStatus(ctx, orderID,
			models.OrderStatusAccepted, models.OrderStatusCompleted); err != nil {
			return nil, err
		}
		e.evict(ctx, orderID)
		order.Status = models.OrderStatusCompleted
		return order, ErrAlreadyCompleted
	}

	for _, item := range order.Items {
		if err := e.decrementStock(ctx, item); err != nil {
			return nil, err
		}
	}

	swapped, err := e.ledger.CompareAndSetOrderStatus(ctx, orderID,
		models.OrderStatusAccepted, models.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !swapped {
		slog.Warn("Order status changed underneath completion", "order_id", orderID)
	}
	e.evict(ctx, orderID)

	order.Status = models.OrderStatusCompleted
	slog.Info("Order completed", "order_id", orderID, "vendor_id", order.VendorID)
	metrics.Completions.Inc()

	if err := e.publisher.PublishOrderCompleted(ctx, order); err != nil {
		slog.Error("Failed to publish order completed event", "order_id", orderID, "error", err)
	}

	return order, nil
}

// decrementStock subtracts the ordered quantity from the product's stock,
// clamped at zero. A missing product is logged and skipped so one deleted
// listing cannot wedge the order.
func (e *AuthEngine) decrementStock(ctx context.Context, item models.OrderItem) error {
	product, err := e.ledger.GetProduct(ctx, item.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Product missing during stock decrement", "product_id", item.ProductID)
		return nil
	}
	if err != nil {
		return err
	}

	stock := product.Stock - item.Quantity
	if stock < 0 {
		stock = 0
	}

	return e.ledger.SetProductStock(ctx, item.ProductID, stock)
}

// GetOrder fetches a single order through the cache.
func (e *AuthEngine) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := e.getOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	EnsureTotals(order)
	return order, nil
}

// ListVendorOrders lists the orders addressed to a vendor.
func (e *AuthEngine) ListVendorOrders(ctx context.Context, vendorID string) ([]*models.Order, error) {
	orders, err := e.ledger.ListOrdersByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		EnsureTotals(order)
	}
	return orders, nil
}

// GetSecret fetches the secret record of an order, QR image included.
func (e *AuthEngine) GetSecret(ctx context.Context, orderID string) (*models.OrderSecret, error) {
	secret, err := e.ledger.GetSecret(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return secret, err
}

func (e *AuthEngine) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if e.cacheEnabled() {
		if order, err := e.cache.Get(ctx, orderID); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := e.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if e.cacheEnabled() {
		if err := e.cache.Set(ctx, order); err != nil {
			slog.Error("Failed to cache order", "order_id", orderID, "error", err)
		}
	}
	return order, nil
}

func (e *AuthEngine) evict(ctx context.Context, orderID string) {
	if !e.cacheEnabled() {
		return
	}
	if err := e.cache.Delete(ctx, orderID); err != nil {
		slog.Error("Failed to evict order from cache", "order_id", orderID, "error", err)
	}
}

func (e *AuthEngine) cacheEnabled() bool {
	return e.cache != nil && e.config.Features.EnableOrderCaching
}
