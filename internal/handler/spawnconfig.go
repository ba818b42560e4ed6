package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transitdemand/internal/domain"
	"transitdemand/internal/repository"
	"transitdemand/internal/spawn"
)

// SpawnConfigHandler administers spawn configs.
type SpawnConfigHandler struct {
	repo     repository.SpawnConfigRepository
	resolver *spawn.Resolver
}

// NewSpawnConfigHandler creates a new SpawnConfigHandler.
func NewSpawnConfigHandler(repo repository.SpawnConfigRepository, resolver *spawn.Resolver) *SpawnConfigHandler {
	return &SpawnConfigHandler{repo: repo, resolver: resolver}
}

// SpawnConfigRequest is the HTTP request body for upserting a spawn config.
// Map keys are strings because JSON object keys always are; hour keys must
// parse to 0-23 and day keys to 0-6.
type SpawnConfigRequest struct {
	RouteID        string             `json:"route_id,omitempty"`
	BaseRate       *float64           `json:"base_rate,omitempty"`
	HourlyRates    map[string]float64 `json:"hourly_rates,omitempty"`
	DayMultipliers map[string]float64 `json:"day_multipliers,omitempty"`
	TTLSeconds     int64              `json:"ttl_seconds,omitempty"`
}

// SpawnConfigResponse is the HTTP representation of a spawn config.
type SpawnConfigResponse struct {
	ID             string             `json:"id"`
	RouteID        string             `json:"route_id,omitempty"`
	BaseRate       *float64           `json:"base_rate,omitempty"`
	HourlyRates    map[string]float64 `json:"hourly_rates"`
	DayMultipliers map[string]float64 `json:"day_multipliers"`
	TTLSeconds     int64              `json:"ttl_seconds"`
	UpdatedAt      string             `json:"updated_at"`
}

// Upsert handles PUT /v1/spawn-configs
func (h *SpawnConfigHandler) Upsert(c *gin.Context) {
	var req SpawnConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cfg := &domain.SpawnConfig{
		ID:             uuid.New().String(),
		RouteID:        req.RouteID,
		BaseRate:       req.BaseRate,
		HourlyRates:    make(map[int]float64, len(req.HourlyRates)),
		DayMultipliers: make(map[time.Weekday]float64, len(req.DayMultipliers)),
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		UpdatedAt:      time.Now(),
	}

	for k, v := range req.HourlyRates {
		hour, err := strconv.Atoi(k)
		if err != nil || hour < 0 || hour > 23 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hourly_rates keys must be hours 0-23"})
			return
		}
		cfg.HourlyRates[hour] = v
	}
	for k, v := range req.DayMultipliers {
		day, err := strconv.Atoi(k)
		if err != nil || day < 0 || day > 6 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "day_multipliers keys must be weekdays 0-6"})
			return
		}
		cfg.DayMultipliers[time.Weekday(day)] = v
	}

	if err := spawn.Validate(cfg); err != nil {
		respondError(c, err)
		return
	}

	if err := h.repo.Upsert(c.Request.Context(), cfg); err != nil {
		respondError(c, err)
		return
	}
	h.resolver.Invalidate(c.Request.Context(), cfg.RouteID)

	respondJSON(c, http.StatusOK, toSpawnConfigResponse(cfg))
}

// Get handles GET /v1/spawn-configs
func (h *SpawnConfigHandler) Get(c *gin.Context) {
	cfg, err := h.repo.GetByScope(c.Request.Context(), c.Query("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSpawnConfigResponse(cfg))
}

func toSpawnConfigResponse(cfg *domain.SpawnConfig) SpawnConfigResponse {
	response := SpawnConfigResponse{
		ID:             cfg.ID,
		RouteID:        cfg.RouteID,
		BaseRate:       cfg.BaseRate,
		HourlyRates:    make(map[string]float64, len(cfg.HourlyRates)),
		DayMultipliers: make(map[string]float64, len(cfg.DayMultipliers)),
		TTLSeconds:     int64(cfg.TTL / time.Second),
		UpdatedAt:      cfg.UpdatedAt.Format(time.RFC3339),
	}
	for h, v := range cfg.HourlyRates {
		response.HourlyRates[strconv.Itoa(h)] = v
	}
	for d, v := range cfg.DayMultipliers {
		response.DayMultipliers[strconv.Itoa(int(d))] = v
	}
	return response
}
