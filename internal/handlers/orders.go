package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/souqline/fulfillment-service/internal/models"
	"github.com/souqline/fulfillment-service/internal/service"
)

// actionRequest is the body of the vendor accept/reject/complete actions.
// Accept and reject are destructive to order state, so the caller must
// confirm explicitly; a bare POST answers confirmation_required instead of
// mutating anything.
type actionRequest struct {
	Confirm   bool   `json:"confirm"`
	SecretKey string `json:"secret_key,omitempty"`
}

// ListVendorOrders handles GET /api/v1/orders?vendor_id=X
func (h *Handlers) ListVendorOrders(c *gin.Context) {
	vendorID := c.Query("vendor_id")
	if vendorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id is required"})
		return
	}

	orders, err := h.engine.ListVendorOrders(c.Request.Context(), vendorID)
	if err != nil {
		slog.Error("Failed to list vendor orders", "vendor_id", vendorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}

	for _, order := range orders {
		attachQRURL(order)
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.engine.GetOrder(c.Request.Context(), orderID)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		slog.Error("Failed to get order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get order"})
		return
	}

	attachQRURL(order)
	c.JSON(http.StatusOK, order)
}

// AcceptOrder handles POST /api/v1/orders/:id/accept
func (h *Handlers) AcceptOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Confirm {
		c.JSON(http.StatusConflict, gin.H{
			"status":  "confirmation_required",
			"message": "accepting issues the order's QR code; repeat with confirm=true",
		})
		return
	}

	secret, err := h.engine.Accept(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	case errors.Is(err, service.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting acceptance"})
		return
	case err != nil:
		slog.Error("Failed to accept order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":   secret.OrderID,
		"status":     models.OrderStatusAccepted,
		"qr_url":     qrPath(secret.OrderID),
		"created_at": secret.CreatedAt,
	})
}

// RejectOrder handles POST /api/v1/orders/:id/reject
func (h *Handlers) RejectOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Confirm {
		c.JSON(http.StatusConflict, gin.H{
			"status":  "confirmation_required",
			"message": "rejecting deletes the order; repeat with confirm=true",
		})
		return
	}

	err := h.engine.Reject(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	case errors.Is(err, service.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting acceptance"})
		return
	case err != nil:
		slog.Error("Failed to reject order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"status":   "rejected",
	})
}

// CompleteOrder handles POST /api/v1/orders/:id/complete
func (h *Handlers) CompleteOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SecretKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret_key is required"})
		return
	}

	order, err := h.engine.Complete(c.Request.Context(), orderID, req.SecretKey)
	switch {
	case errors.Is(err, service.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "order already completed",
			"status": models.OrderStatusCompleted,
		})
		return
	case errors.Is(err, service.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "order could not be authenticated"})
		return
	case err != nil:
		slog.Error("Failed to complete order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// OrderQRImage handles GET /api/v1/orders/:id/qr
func (h *Handlers) OrderQRImage(c *gin.Context) {
	orderID := c.Param("id")

	secret, err := h.engine.GetSecret(c.Request.Context(), orderID)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no QR code for order"})
		return
	}
	if err != nil {
		slog.Error("Failed to load QR image", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load QR image"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="order-%s-QR.png"`, orderID))
	c.Data(http.StatusOK, "image/png", secret.QRImage)
}

func attachQRURL(order *models.Order) {
	if order.Status != models.OrderStatusPending {
		order.QRURL = qrPath(order.ID)
	}
}

func qrPath(orderID string) string {
	return fmt.Sprintf("/api/v1/orders/%s/qr", orderID)
}
