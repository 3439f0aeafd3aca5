package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/souqline/fulfillment-service/internal/models"
)

// PostgresLedger implements Ledger on PostgreSQL. Orders keep their line
// items as a JSON document column, mirroring the document-per-order shape
// the workflow was designed around.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const orderColumns = `id, buyer_id, vendor_id, items, total_price, status, order_date`

// GetOrder retrieves an order by its unique identifier.
func (l *PostgresLedger) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to fetch order", "order_id", id, "error", err)
		return nil, err
	}
	return order, nil
}

// ListOrdersByVendor retrieves all orders addressed to a vendor, newest
// first.
func (l *PostgresLedger) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*models.Order, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE vendor_id = $1 ORDER BY order_date DESC`, vendorID)
	if err != nil {
		slog.Error("Failed to list vendor orders", "vendor_id", vendorID, "error", err)
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// DeleteOrder removes the order document entirely.
func (l *PostgresLedger) DeleteOrder(ctx context.Context, id string) error {
	result, err := l.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		slog.Error("Failed to delete order", "order_id", id, "error", err)
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	slog.Info("Order deleted", "order_id", id)
	return nil
}

// UpdateOrderStatus sets the order's status unconditionally.
func (l *PostgresLedger) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		slog.Error("Failed to update order status", "order_id", id, "error", err)
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	slog.Info("Order status updated", "order_id", id, "status", status)
	return nil
}

// CompareAndSetOrderStatus flips status from -> to in a single statement,
// so two sessions racing the same transition cannot both win.
func (l *PostgresLedger) CompareAndSetOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	result, err := l.db.ExecContext(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		slog.Error("Failed to swap order status", "order_id", id, "error", err)
		return false, err
	}

	affected, _ := result.RowsAffected()
	if affected == 1 {
		slog.Info("Order status swapped", "order_id", id, "from", from, "to", to)
		return true, nil
	}

	// Distinguish a lost race from a missing order.
	var exists bool
	if err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// GetSecret retrieves the secret record for an order.
func (l *PostgresLedger) GetSecret(ctx context.Context, orderID string) (*models.OrderSecret, error) {
	var secret models.OrderSecret
	err := l.db.QueryRowContext(ctx,
		`SELECT order_id, vendor_id, secret_key, qr_image, status, created_at
		 FROM order_secrets WHERE order_id = $1`, orderID).
		Scan(&secret.OrderID, &secret.VendorID, &secret.SecretKey, &secret.QRImage, &secret.Status, &secret.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to fetch order secret", "order_id", orderID, "error", err)
		return nil, err
	}
	return &secret, nil
}

// CreateSecret inserts a secret record for an order. The primary key on
// order_id makes issuance create-if-absent: a second insert reports
// ErrSecretExists and leaves the stored secret untouched.
func (l *PostgresLedger) CreateSecret(ctx context.Context, secret *models.OrderSecret) error {
	result, err := l.db.ExecContext(ctx,
		`INSERT INTO order_secrets (order_id, vendor_id, secret_key, qr_image, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (order_id) DO NOTHING`,
		secret.OrderID, secret.VendorID, secret.SecretKey, secret.QRImage, secret.Status, secret.CreatedAt)
	if err != nil {
		slog.Error("Failed to create order secret", "order_id", secret.OrderID, "error", err)
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrSecretExists
	}

	slog.Info("Order secret created", "order_id", secret.OrderID)
	return nil
}

// RedeemSecret claims the secret for completion. The conditional update is
// the at-most-once gate: only one session can move it out of pending.
func (l *PostgresLedger) RedeemSecret(ctx context.Context, orderID string) (bool, error) {
	result, err := l.db.ExecContext(ctx,
		`UPDATE order_secrets SET status = $2 WHERE order_id = $1 AND status = $3`,
		orderID, models.SecretStatusRedeemed, models.SecretStatusPending)
	if err != nil {
		slog.Error("Failed to redeem order secret", "order_id", orderID, "error", err)
		return false, err
	}

	affected, _ := result.RowsAffected()
	if affected == 1 {
		slog.Info("Order secret redeemed", "order_id", orderID)
		return true, nil
	}

	var exists bool
	if err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_secrets WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// GetProduct retrieves the stock-bearing slice of a product document.
func (l *PostgresLedger) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := l.db.QueryRowContext(ctx,
		`SELECT id, title, stock FROM products WHERE id = $1`, id).
		Scan(&product.ID, &product.Title, &product.Stock)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to fetch product", "product_id", id, "error", err)
		return nil, err
	}
	return &product, nil
}

// SetProductStock writes the product's stock counter.
func (l *PostgresLedger) SetProductStock(ctx context.Context, id string, stock int) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		slog.Error("Failed to update product stock", "product_id", id, "error", err)
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	slog.Info("Product stock updated", "product_id", id, "stock", stock)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var itemsJSON []byte

	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.VendorID,
		&itemsJSON,
		&order.TotalPrice,
		&order.Status,
		&order.OrderDate,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, err
	}

	return &order, nil
}
