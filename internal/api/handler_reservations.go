package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry-reservation-backend/internal/reserve"
	"laundry-reservation-backend/internal/store"
	"laundry-reservation-backend/internal/validate"
)

type startRequest struct {
	Duration *float64 `json:"duration"`
	Email    string   `json:"email"`
}

// StartMachine handles the POST /api/machines/:id/start request.
func (h *Handler) StartMachine(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Duration == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid duration. Must be between %d and %d minutes.", h.cfg.Reservation.MinMinutes, h.cfg.Reservation.MaxMinutes),
		})
		return
	}
	if !validate.Duration(*req.Duration, h.cfg.Reservation.MinMinutes, h.cfg.Reservation.MaxMinutes) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid duration. Must be between %d and %d minutes.", h.cfg.Reservation.MinMinutes, h.cfg.Reservation.MaxMinutes),
		})
		return
	}
	if req.Email != "" && !validate.Email(req.Email) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	m, err := h.engine.Start(c.Request.Context(), id, int(*req.Duration), validate.NormalizeEmail(req.Email))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, m)
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
	case errors.Is(err, reserve.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Machine is already in use"})
	case errors.Is(err, reserve.ErrInvalidDuration):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start machine"})
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) bindEmail(c *gin.Context) (string, bool) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validate.Email(req.Email) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return "", false
	}
	return validate.NormalizeEmail(req.Email), true
}

// Subscribe handles the POST /api/machines/:id/subscribe request.
func (h *Handler) Subscribe(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	email, ok := h.bindEmail(c)
	if !ok {
		return
	}

	err := h.engine.Subscribe(c.Request.Context(), id, email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Successfully subscribed to notifications"})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
	case errors.Is(err, reserve.ErrNotInUse):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Machine is not in use"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
	}
}

// Unsubscribe handles the POST /api/machines/:id/unsubscribe request.
// Unsubscribing an address that was never subscribed still succeeds.
func (h *Handler) Unsubscribe(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	email, ok := h.bindEmail(c)
	if !ok {
		return
	}

	err := h.engine.Unsubscribe(c.Request.Context(), id, email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Successfully unsubscribed from notifications"})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe"})
	}
}

// TestEmail handles the POST /api/test-email request.
func (h *Handler) TestEmail(c *gin.Context) {
	email, ok := h.bindEmail(c)
	if !ok {
		return
	}

	if err := h.engine.SendTestEmail(email); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to send test email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test email sent successfully"})
}
