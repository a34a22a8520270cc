package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/storage"
)

// TripService manages trips and their members.
type TripService struct {
	store storage.Store
}

// NewTripService creates a new TripService with the given storage backend.
func NewTripService(store storage.Store) *TripService {
	return &TripService{store: store}
}

// CreateTrip creates a trip with an optional initial member list. An empty
// base currency defaults to USD.
func (s *TripService) CreateTrip(ctx context.Context, name, baseCurrency string, memberNames []string) (*models.Trip, error) {
	slog.Info("CreateTrip request received", "name", name, "members_count", len(memberNames))

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("trip name is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(baseCurrency))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if !models.IsSupportedCurrency(currency) {
		return nil, validationf("unsupported currency: %s", currency)
	}

	trip := &models.Trip{Name: name, BaseCurrency: currency}
	for _, memberName := range memberNames {
		memberName = strings.TrimSpace(memberName)
		if memberName == "" {
			return nil, validationf("member name is required")
		}
		trip.Members = append(trip.Members, models.Member{Name: memberName})
	}

	if err := s.store.CreateTrip(ctx, trip); err != nil {
		slog.Error("CreateTrip failed", "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Trip created", "trip_id", trip.ID, "base_currency", trip.BaseCurrency)
	return trip, nil
}

// GetTrip retrieves a trip with its members.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		slog.Error("GetTrip failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}
	return trip, nil
}

// ListTrips retrieves all trips, newest first.
func (s *TripService) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	trips, err := s.store.ListTrips(ctx)
	if err != nil {
		slog.Error("ListTrips failed", "error", err)
		return nil, wrapStoreErr(err)
	}
	return trips, nil
}

// AddMember adds a member to an existing trip.
func (s *TripService) AddMember(ctx context.Context, tripID, name string) (*models.Member, error) {
	slog.Info("AddMember request received", "trip_id", tripID, "name", name)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("member name is required")
	}

	member := &models.Member{TripID: tripID, Name: name}
	if err := s.store.CreateMember(ctx, member); err != nil {
		slog.Error("AddMember failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Member added", "trip_id", tripID, "member_id", member.ID)
	return member, nil
}

// ListMembers retrieves the members of a trip.
func (s *TripService) ListMembers(ctx context.Context, tripID string) ([]*models.Member, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	members := make([]*models.Member, len(trip.Members))
	for i := range trip.Members {
		members[i] = &trip.Members[i]
	}
	return members, nil
}
