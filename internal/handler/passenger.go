package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"transitdemand/internal/domain"
	"transitdemand/internal/repository"
	"transitdemand/internal/service"
)

// PassengerHandler handles HTTP requests for passenger queries and lifecycle
// transitions.
type PassengerHandler struct {
	reservoir *service.ReservoirService
	lifecycle *service.LifecycleService
}

// NewPassengerHandler creates a new PassengerHandler.
func NewPassengerHandler(reservoir *service.ReservoirService, lifecycle *service.LifecycleService) *PassengerHandler {
	return &PassengerHandler{
		reservoir: reservoir,
		lifecycle: lifecycle,
	}
}

// PassengerResponse is the HTTP representation of a passenger.
type PassengerResponse struct {
	ID             string  `json:"passenger_id"`
	DepotID        string  `json:"depot_id,omitempty"`
	RouteID        string  `json:"route_id"`
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
	Direction      string  `json:"direction"`
	Status         string  `json:"status"`
	SpawnedAt      string  `json:"spawned_at"`
	ExpiresAt      string  `json:"expires_at"`
	BoardedAt      string  `json:"boarded_at,omitempty"`
	AlightedAt     string  `json:"alighted_at,omitempty"`
	DistanceM      float64 `json:"distance_m,omitempty"`
}

// TransitionResponse is the HTTP response for a lifecycle transition.
type TransitionResponse struct {
	PassengerID string `json:"passenger_id"`
	Status      string `json:"status"`
	BoardedAt   string `json:"boarded_at,omitempty"`
	AlightedAt  string `json:"alighted_at,omitempty"`
}

// MarkBoarded handles POST /v1/passengers/:id/board
func (h *PassengerHandler) MarkBoarded(c *gin.Context) {
	p, err := h.lifecycle.Board(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TransitionResponse{
		PassengerID: p.ID,
		Status:      string(p.Status),
		BoardedAt:   p.BoardedAt.Format(time.RFC3339),
	})
}

// MarkAlighted handles POST /v1/passengers/:id/alight
func (h *PassengerHandler) MarkAlighted(c *gin.Context) {
	p, err := h.lifecycle.Alight(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TransitionResponse{
		PassengerID: p.ID,
		Status:      string(p.Status),
		BoardedAt:   p.BoardedAt.Format(time.RFC3339),
		AlightedAt:  p.AlightedAt.Format(time.RFC3339),
	})
}

// NearLocationResponse is the HTTP response for a near-location query.
type NearLocationResponse struct {
	Count      int                 `json:"count"`
	Passengers []PassengerResponse `json:"passengers"`
}

// NearLocation handles GET /v1/passengers/near
func (h *PassengerHandler) NearLocation(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lng"})
		return
	}
	radiusM, err := strconv.ParseFloat(c.Query("radius_m"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid radius_m"})
		return
	}

	filter := repository.PassengerFilter{
		RouteID: c.Query("route_id"),
		Status:  domain.PassengerStatus(c.Query("status")),
	}

	results, err := h.reservoir.QueryNearLocation(c.Request.Context(), lat, lng, radiusM, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := NearLocationResponse{
		Count:      len(results),
		Passengers: make([]PassengerResponse, 0, len(results)),
	}
	for _, r := range results {
		pr := toPassengerResponse(r.Passenger)
		pr.DistanceM = r.DistanceM
		response.Passengers = append(response.Passengers, pr)
	}

	respondJSON(c, http.StatusOK, response)
}

// List handles GET /v1/passengers
func (h *PassengerHandler) List(c *gin.Context) {
	filter := repository.PassengerFilter{
		RouteID: c.Query("route_id"),
		DepotID: c.Query("depot_id"),
	}

	passengers, err := h.reservoir.QueryByStatus(c.Request.Context(), domain.PassengerStatus(c.Query("status")), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PassengerResponse, 0, len(passengers))
	for _, p := range passengers {
		response = append(response, toPassengerResponse(p))
	}
	respondJSON(c, http.StatusOK, response)
}

// CleanupExpiredResponse is the HTTP response for an expiration sweep.
type CleanupExpiredResponse struct {
	DeletedCount        int      `json:"deleted_count"`
	DeletedPassengerIDs []string `json:"deleted_passenger_ids"`
}

// CleanupExpired handles DELETE /v1/passengers/expired
func (h *PassengerHandler) CleanupExpired(c *gin.Context) {
	result, err := h.reservoir.ExpireStale(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	ids := result.DeletedIDs
	if ids == nil {
		ids = []string{}
	}
	respondJSON(c, http.StatusOK, CleanupExpiredResponse{
		DeletedCount:        result.DeletedCount,
		DeletedPassengerIDs: ids,
	})
}

// StatsResponse is the HTTP response for passenger stats.
type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Stats handles GET /v1/passengers/stats
func (h *PassengerHandler) Stats(c *gin.Context) {
	result, err := h.reservoir.Stats(c.Request.Context(), c.Query("route_id"), domain.PassengerStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	byStatus := make(map[string]int, len(result.ByStatus))
	for status, count := range result.ByStatus {
		byStatus[string(status)] = count
	}
	respondJSON(c, http.StatusOK, StatsResponse{Total: result.Total, ByStatus: byStatus})
}

func toPassengerResponse(p *domain.Passenger) PassengerResponse {
	response := PassengerResponse{
		ID:             p.ID,
		DepotID:        p.DepotID,
		RouteID:        p.RouteID,
		OriginLat:      p.OriginLat,
		OriginLng:      p.OriginLng,
		DestinationLat: p.DestinationLat,
		DestinationLng: p.DestinationLng,
		Direction:      string(p.Direction),
		Status:         string(p.Status),
		SpawnedAt:      p.SpawnedAt.Format(time.RFC3339),
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
	}
	if !p.BoardedAt.IsZero() {
		response.BoardedAt = p.BoardedAt.Format(time.RFC3339)
	}
	if !p.AlightedAt.IsZero() {
		response.AlightedAt = p.AlightedAt.Format(time.RFC3339)
	}
	return response
}
