package service

import (
	"context"
	"log"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/events"
	"transitdemand/internal/repository"
)

// LifecycleService enforces the passenger state machine:
//
//	WAITING --claim--> ONBOARD --alight--> COMPLETED
//	WAITING --expiry sweep--> (deleted)
//
// No other transition is valid. Each transition emits exactly one lifecycle
// event, after the state mutation commits.
type LifecycleService struct {
	reservoir *ReservoirService
	repo      repository.PassengerRepository
	publisher events.Publisher
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	reservoir *ReservoirService,
	repo repository.PassengerRepository,
	publisher events.Publisher,
) *LifecycleService {
	return &LifecycleService{
		reservoir: reservoir,
		repo:      repo,
		publisher: publisher,
	}
}

// Board claims a WAITING passenger for boarding. The reservoir owns the
// claim compare-and-set and the boarded event.
func (s *LifecycleService) Board(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	return s.reservoir.ClaimForBoarding(ctx, passengerID)
}

// Alight transitions an ONBOARD passenger to COMPLETED and emits
// passenger:alighted. A passenger that is not ONBOARD fails with
// repository.ErrNotOnboard (or ErrNotFound) without mutating state. Once
// COMPLETED the record is immutable.
func (s *LifecycleService) Alight(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	p, err := s.repo.CompleteAlight(ctx, passengerID, time.Now())
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.TopicPassengerAlighted, events.PassengerPayload(p)); err != nil {
			// The transition is committed; the bus owns retry.
			log.Printf("event publish failed: topic=%s passenger=%s: %v", events.TopicPassengerAlighted, p.ID, err)
		}
	}
	return p, nil
}
