package api

import (
	"errors"
	"net/http"
	"strconv"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/models"
	"dealwatch/internal/services/monitor"
	"dealwatch/internal/services/notify"
	"dealwatch/internal/services/referral"
	"dealwatch/internal/services/wishlist"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type APIHandler struct {
	db         *gorm.DB
	store      *wishlist.Store
	monitor    *monitor.Monitor
	dispatcher *notify.Dispatcher
	ledger     *referral.Ledger
	hub        *EventHub
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, store *wishlist.Store, mon *monitor.Monitor, dispatcher *notify.Dispatcher, ledger *referral.Ledger) *APIHandler {
	handler := &APIHandler{
		db:         db,
		store:      store,
		monitor:    mon,
		dispatcher: dispatcher,
		ledger:     ledger,
		hub:        NewEventHub(),
	}

	wl := r.Group("/wishlist")
	{
		wl.GET("", handler.GetWishlist)
		wl.POST("", handler.AddWishlistItem)
		wl.PUT("/:id", handler.UpdateWishlistItem)
		wl.DELETE("/:id", handler.DeleteWishlistItem)
	}

	mo := r.Group("/monitor")
	{
		mo.POST("/evaluate", handler.RunEvaluation)
	}

	r.GET("/products/:id/history", handler.GetPriceHistory)
	r.GET("/notifications", handler.ListNotifications)

	ref := r.Group("/referral")
	{
		ref.GET("/code", handler.GetReferralCode)
		ref.POST("/cashback", handler.CreditCashback)
		ref.GET("/cashback/export", handler.ExportCashbackLedger)
	}

	return handler
}

// statusForError maps core error kinds to HTTP status codes. Anything the
// core did not classify is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrChannelUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userIDFromQuery(c *gin.Context) (uint, bool) {
	raw := c.Query("user_id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid user_id is required"})
		return 0, false
	}
	return uint(id), true
}

// Wishlist handlers

func (h *APIHandler) GetWishlist(c *gin.Context) {
	userID, ok := userIDFromQuery(c)
	if !ok {
		return
	}

	items, err := h.store.Items(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type wishlistItemRequest struct {
	UserID      uint    `json:"user_id" binding:"required"`
	ProductID   string  `json:"product_id" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required"`
}

func (h *APIHandler) AddWishlistItem(c *gin.Context) {
	var req wishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.store.AddItem(c.Request.Context(), req.UserID, req.ProductID, req.TargetPrice)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *APIHandler) UpdateWishlistItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req wishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.store.UpdateItem(c.Request.Context(), req.UserID, uint(itemID), req.ProductID, req.TargetPrice)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *APIHandler) DeleteWishlistItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	userID, ok := userIDFromQuery(c)
	if !ok {
		return
	}

	if err := h.store.RemoveItem(c.Request.Context(), userID, uint(itemID)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": itemID})
}

// Monitoring handlers

type evaluateRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// RunEvaluation runs one monitoring cycle for a user and dispatches every
// emitted drop event. Per-event dispatch failures are reported in the
// response rather than failing the cycle; the next run retries them.
func (h *APIHandler) RunEvaluation(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	events, err := h.monitor.Evaluate(ctx, req.UserID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	notifications := make([]*models.NotificationRecord, 0, len(events))
	for _, ev := range events {
		h.hub.Broadcast(ev)
		// A dispatch failure is already recorded as a failed attempt and
		// will recur on the next cycle; it never fails the request.
		rec, _ := h.dispatcher.Dispatch(ctx, ev)
		if rec != nil {
			notifications = append(notifications, rec)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"events":        events,
		"notifications": notifications,
	})
}

func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	productID := c.Param("id")

	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var quotes []models.PriceQuote
	err := h.db.WithContext(c.Request.Context()).
		Where("product_id = ?", productID).
		Order("observed_at desc").
		Limit(limit).
		Find(&quotes).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func (h *APIHandler) ListNotifications(c *gin.Context) {
	userID, ok := userIDFromQuery(c)
	if !ok {
		return
	}

	var records []models.NotificationRecord
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("attempted_at desc").
		Find(&records).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": records})
}

// Referral handlers

func (h *APIHandler) GetReferralCode(c *gin.Context) {
	userID, ok := userIDFromQuery(c)
	if !ok {
		return
	}

	code, err := h.ledger.GetOrCreateCode(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

type cashbackRequest struct {
	PurchaseID         string   `json:"purchase_id" binding:"required"`
	ReferrerID         uint     `json:"referrer_id" binding:"required"`
	RefereeID          uint     `json:"referee_id" binding:"required"`
	PurchaseAmount     float64  `json:"purchase_amount" binding:"required"`
	CashbackPercentage *float64 `json:"cashback_percentage"`
}

func (h *APIHandler) CreditCashback(c *gin.Context) {
	var req cashbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pct := referral.DefaultCashbackPercentage
	if req.CashbackPercentage != nil {
		pct = *req.CashbackPercentage
	}

	entry, err := h.ledger.CreditCashback(c.Request.Context(), req.PurchaseID, req.ReferrerID, req.RefereeID, req.PurchaseAmount, pct)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}
