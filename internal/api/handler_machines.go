package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/status"
	"laundry-reservation-backend/internal/store"
)

// machineResponse is the flattened structure for the API response.
type machineResponse struct {
	model.Machine
	status.Projection
}

// ListMachines handles the GET /api/machines request. Reading the list runs
// the cleanup pass, so stored state catches up with wall-clock expiry here.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.engine.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch machines"})
		return
	}

	now := time.Now()
	response := make([]machineResponse, 0, len(machines))
	for i := range machines {
		response = append(response, machineResponse{
			Machine:    machines[i],
			Projection: status.Project(&machines[i], now),
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetMachine handles the GET /api/machines/:id request.
func (h *Handler) GetMachine(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	m, err := h.engine.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch machine"})
		return
	}

	c.JSON(http.StatusOK, machineResponse{
		Machine:    *m,
		Projection: status.Project(m, time.Now()),
	})
}

func machineID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid machine ID"})
		return 0, false
	}
	return id, true
}
