package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"transitdemand/internal/domain"
)

// Lifecycle topics. Each carries the full passenger record at the moment of
// the transition.
const (
	TopicPassengerSpawned  = "passenger:spawned"
	TopicPassengerBoarded  = "passenger:boarded"
	TopicPassengerAlighted = "passenger:alighted"
)

// Publisher is the injected event-bus capability. Implementations must treat
// publishing as fire-and-forget from the caller's perspective: a failed
// publish is the implementation's problem and never rolls back state.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// PassengerPayload builds the event payload for a passenger transition.
func PassengerPayload(p *domain.Passenger) map[string]any {
	payload := map[string]any{
		"passenger_id":    p.ID,
		"route_id":        p.RouteID,
		"origin_lat":      p.OriginLat,
		"origin_lng":      p.OriginLng,
		"destination_lat": p.DestinationLat,
		"destination_lng": p.DestinationLng,
		"direction":       string(p.Direction),
		"status":          string(p.Status),
		"spawned_at":      p.SpawnedAt.Format(time.RFC3339),
		"expires_at":      p.ExpiresAt.Format(time.RFC3339),
	}
	if p.DepotID != "" {
		payload["depot_id"] = p.DepotID
	}
	if !p.BoardedAt.IsZero() {
		payload["boarded_at"] = p.BoardedAt.Format(time.RFC3339)
	}
	if !p.AlightedAt.IsZero() {
		payload["alighted_at"] = p.AlightedAt.Format(time.RFC3339)
	}
	return payload
}

// RedisPublisher publishes events over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher backed by Redis pub/sub.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish marshals the payload to JSON and publishes it on the topic channel.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, topic, data).Err()
}

// LogPublisher writes events to the process log. Used when no bus is
// configured, and as the fallback sink in tests.
type LogPublisher struct{}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	log.Printf("[EVENT] topic=%s payload=%s", topic, data)
	return nil
}

// Ensure concrete types implement Publisher.
var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
