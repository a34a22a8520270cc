// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/tripledger/tripledger/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
// Implementations wrap it with the entity and ID for context.
var ErrNotFound = errors.New("not found")

// Store defines the interface for trip ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateTrip persists a new trip together with its initial members.
	// Empty IDs and timestamps are populated by the store.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip retrieves a trip by ID, including its members.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// ListTrips retrieves all trips, newest first, including members.
	ListTrips(ctx context.Context) ([]*models.Trip, error)

	// CreateMember adds a member to an existing trip.
	CreateMember(ctx context.Context, member *models.Member) error

	// GetMember retrieves a member by ID.
	GetMember(ctx context.Context, memberID string) (*models.Member, error)

	// ListMembers retrieves all members of a trip in join order.
	ListMembers(ctx context.Context, tripID string) ([]*models.Member, error)

	// CreateExpense persists an expense and its splits in one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// CreateExpenses persists several expenses and their splits in one
	// transaction. Either all of them land or none do.
	CreateExpenses(ctx context.Context, expenses []*models.Expense) error

	// GetExpense retrieves an expense by ID, including its splits.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses retrieves a trip's expenses, newest first, including
	// splits. An empty kind returns every expense; otherwise only that kind.
	ListExpenses(ctx context.Context, tripID string, kind models.ExpenseKind) ([]*models.Expense, error)

	// UpdateExpense replaces an expense and its split set.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its splits.
	DeleteExpense(ctx context.Context, expenseID string) error

	// Close releases any resources held by the store.
	Close() error
}
