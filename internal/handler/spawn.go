package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transitdemand/internal/service"
	"transitdemand/internal/spawn"
)

// SpawnHandler handles HTTP requests that trigger the spawn pipeline.
type SpawnHandler struct {
	spawnService *service.SpawnService
}

// NewSpawnHandler creates a new SpawnHandler.
func NewSpawnHandler(spawnService *service.SpawnService) *SpawnHandler {
	return &SpawnHandler{spawnService: spawnService}
}

// SpawnRequest is the HTTP request body for triggering a spawn window.
type SpawnRequest struct {
	DepotIDs          []string `json:"depot_ids,omitempty"`
	RouteID           string   `json:"route_id,omitempty"`
	Hour              *int     `json:"hour,omitempty"`
	TimeWindowMinutes float64  `json:"time_window_minutes"`
	Policy            string   `json:"policy,omitempty"`
	Seed              int64    `json:"seed,omitempty"`
}

// RouteSpawnResponse is the per-route outcome inside a spawn response.
type RouteSpawnResponse struct {
	DepotID    string              `json:"depot_id,omitempty"`
	RouteID    string              `json:"route_id"`
	Breakdown  *spawn.Breakdown    `json:"breakdown"`
	Passengers []PassengerResponse `json:"passengers"`
}

// SpawnResponse is the HTTP response for a spawn trigger.
type SpawnResponse struct {
	SpawnedCount      int                  `json:"spawned_count"`
	SpawnedPassengers []PassengerResponse  `json:"spawned_passengers"`
	Results           []RouteSpawnResponse `json:"results"`
}

// Spawn handles POST /v1/spawn
func (h *SpawnHandler) Spawn(c *gin.Context) {
	var req SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Hour != nil && (*req.Hour < 0 || *req.Hour > 23) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hour must be between 0 and 23"})
		return
	}

	at := time.Now()
	if req.Hour != nil {
		at = time.Date(at.Year(), at.Month(), at.Day(), *req.Hour, 0, 0, 0, at.Location())
	}

	result, err := h.spawnService.Spawn(c.Request.Context(), service.SpawnRequest{
		DepotIDs:      req.DepotIDs,
		RouteID:       req.RouteID,
		At:            at,
		WindowMinutes: req.TimeWindowMinutes,
		Policy:        spawn.PolicyKind(req.Policy),
		Seed:          req.Seed,
	})
	if err != nil {
		// A depot list can fail partway with earlier depots already
		// committed; that work must stay visible to the caller.
		if result != nil && len(result.Spawned) > 0 {
			respondJSON(c, mapErrorToHTTPStatus(err), PartialSpawnResponse{
				Error:   err.Error(),
				Partial: toSpawnResponse(result),
			})
			return
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toSpawnResponse(result))
}

// PartialSpawnResponse reports a spawn that committed some depots before a
// later one failed.
type PartialSpawnResponse struct {
	Error   string        `json:"error"`
	Partial SpawnResponse `json:"partial"`
}

func toSpawnResponse(result *service.SpawnResult) SpawnResponse {
	response := SpawnResponse{
		SpawnedCount:      len(result.Spawned),
		SpawnedPassengers: make([]PassengerResponse, 0, len(result.Spawned)),
		Results:           make([]RouteSpawnResponse, 0, len(result.Results)),
	}
	for _, p := range result.Spawned {
		response.SpawnedPassengers = append(response.SpawnedPassengers, toPassengerResponse(p))
	}
	for _, rr := range result.Results {
		rs := RouteSpawnResponse{
			DepotID:    rr.DepotID,
			RouteID:    rr.RouteID,
			Breakdown:  rr.Breakdown,
			Passengers: make([]PassengerResponse, 0, len(rr.Passengers)),
		}
		for _, p := range rr.Passengers {
			rs.Passengers = append(rs.Passengers, toPassengerResponse(p))
		}
		response.Results = append(response.Results, rs)
	}
	return response
}
