package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tripledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func seedTrip(t *testing.T, store *SQLiteStore, names ...string) *models.Trip {
	t.Helper()

	trip := &models.Trip{Name: "Test Trip", BaseCurrency: "USD"}
	for _, name := range names {
		trip.Members = append(trip.Members, models.Member{Name: name})
	}
	if err := store.CreateTrip(context.Background(), trip); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	return trip
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSQLiteStoreTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateTrip generates IDs", func(t *testing.T) {
		trip := seedTrip(t, store, "Alice", "Bob")

		if trip.ID == "" {
			t.Error("Expected trip ID to be generated")
		}
		if trip.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
		for i, m := range trip.Members {
			if m.ID == "" {
				t.Errorf("Expected member %d ID to be generated", i)
			}
			if m.TripID != trip.ID {
				t.Errorf("Member %d TripID = %s, want %s", i, m.TripID, trip.ID)
			}
		}
	})

	t.Run("GetTrip retrieves trip with members", func(t *testing.T) {
		original := seedTrip(t, store, "Charlie", "Diana")

		retrieved, err := store.GetTrip(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}

		if retrieved.Name != original.Name {
			t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, original.Name)
		}
		if retrieved.BaseCurrency != "USD" {
			t.Errorf("BaseCurrency = %s, want USD", retrieved.BaseCurrency)
		}
		if len(retrieved.Members) != 2 {
			t.Fatalf("Members count = %d, want 2", len(retrieved.Members))
		}
		if retrieved.Members[0].Name != "Charlie" || retrieved.Members[1].Name != "Diana" {
			t.Errorf("Members out of join order: %s, %s", retrieved.Members[0].Name, retrieved.Members[1].Name)
		}
	})

	t.Run("GetTrip returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetTrip(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetTrip error = %v, want ErrNotFound", err)
		}
	})

	t.Run("CreateMember appends to trip", func(t *testing.T) {
		trip := seedTrip(t, store, "Eve", "Frank")

		member := &models.Member{TripID: trip.ID, Name: "Grace"}
		if err := store.CreateMember(ctx, member); err != nil {
			t.Fatalf("CreateMember failed: %v", err)
		}
		if member.ID == "" {
			t.Error("Expected member ID to be generated")
		}

		members, err := store.ListMembers(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 3 {
			t.Fatalf("Members count = %d, want 3", len(members))
		}
		if members[2].Name != "Grace" {
			t.Errorf("Last member = %s, want Grace", members[2].Name)
		}
	})

	t.Run("CreateMember rejects unknown trip", func(t *testing.T) {
		err := store.CreateMember(ctx, &models.Member{TripID: "nonexistent-id", Name: "Henry"})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("CreateMember error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetMember returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetMember(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetMember error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStoreListTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := &models.Trip{Name: "Older", BaseCurrency: "USD", CreatedAt: 100}
	newer := &models.Trip{Name: "Newer", BaseCurrency: "EUR", CreatedAt: 200,
		Members: []models.Member{{Name: "Alice"}}}
	for _, trip := range []*models.Trip{older, newer} {
		if err := store.CreateTrip(ctx, trip); err != nil {
			t.Fatalf("CreateTrip failed: %v", err)
		}
	}

	trips, err := store.ListTrips(ctx)
	if err != nil {
		t.Fatalf("ListTrips failed: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("Trips count = %d, want 2", len(trips))
	}
	if trips[0].Name != "Newer" || trips[1].Name != "Older" {
		t.Errorf("Trips out of order: %s, %s", trips[0].Name, trips[1].Name)
	}
	if len(trips[0].Members) != 1 {
		t.Errorf("Newer trip members = %d, want 1", len(trips[0].Members))
	}
}

func TestSQLiteStoreExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip := seedTrip(t, store, "Alice", "Bob", "Charlie")
	alice, bob := trip.Members[0], trip.Members[1]

	t.Run("CreateExpense round-trips decimals exactly", func(t *testing.T) {
		expense := &models.Expense{
			TripID:           trip.ID,
			Description:      "Dinner",
			PayerMemberID:    alice.ID,
			Currency:         "EUR",
			Amount:           dec("123.45"),
			BaseCurrencyRate: dec("1.18"),
			Kind:             models.ExpenseRegular,
			Notes:            "seaside place",
			Splits: []models.Split{
				{MemberID: alice.ID, Amount: dec("61.73")},
				{MemberID: bob.ID, Amount: dec("61.72")},
			},
		}

		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if expense.ID == "" {
			t.Fatal("Expected expense ID to be generated")
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !retrieved.Amount.Equal(dec("123.45")) {
			t.Errorf("Amount = %s, want 123.45", retrieved.Amount)
		}
		if !retrieved.BaseCurrencyRate.Equal(dec("1.18")) {
			t.Errorf("BaseCurrencyRate = %s, want 1.18", retrieved.BaseCurrencyRate)
		}
		if retrieved.Kind != models.ExpenseRegular {
			t.Errorf("Kind = %s, want %s", retrieved.Kind, models.ExpenseRegular)
		}
		if retrieved.Notes != "seaside place" {
			t.Errorf("Notes = %q, want %q", retrieved.Notes, "seaside place")
		}
		if len(retrieved.Splits) != 2 {
			t.Fatalf("Splits count = %d, want 2", len(retrieved.Splits))
		}
		var sum decimal.Decimal
		for _, split := range retrieved.Splits {
			sum = sum.Add(split.Amount)
		}
		if !sum.Equal(dec("123.45")) {
			t.Errorf("Split sum = %s, want 123.45", sum)
		}
	})

	t.Run("Empty notes round-trip as empty", func(t *testing.T) {
		expense := &models.Expense{
			TripID:           trip.ID,
			Description:      "Taxi",
			PayerMemberID:    bob.ID,
			Currency:         "USD",
			Amount:           dec("20"),
			BaseCurrencyRate: dec("1"),
			Kind:             models.ExpenseRegular,
			Splits:           []models.Split{{MemberID: bob.ID, Amount: dec("20")}},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if retrieved.Notes != "" {
			t.Errorf("Notes = %q, want empty", retrieved.Notes)
		}
	})

	t.Run("GetExpense returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetExpense(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetExpense error = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateExpense replaces splits", func(t *testing.T) {
		expense := &models.Expense{
			TripID:           trip.ID,
			Description:      "Museum",
			PayerMemberID:    alice.ID,
			Currency:         "USD",
			Amount:           dec("30"),
			BaseCurrencyRate: dec("1"),
			Kind:             models.ExpenseRegular,
			Splits: []models.Split{
				{MemberID: alice.ID, Amount: dec("15")},
				{MemberID: bob.ID, Amount: dec("15")},
			},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		createdAt := expense.CreatedAt

		expense.Amount = dec("40")
		expense.Splits = []models.Split{{MemberID: bob.ID, Amount: dec("40")}}
		if err := store.UpdateExpense(ctx, expense); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !retrieved.Amount.Equal(dec("40")) {
			t.Errorf("Amount = %s, want 40", retrieved.Amount)
		}
		if len(retrieved.Splits) != 1 {
			t.Fatalf("Splits count = %d, want 1", len(retrieved.Splits))
		}
		if retrieved.Splits[0].MemberID != bob.ID {
			t.Errorf("Split member = %s, want %s", retrieved.Splits[0].MemberID, bob.ID)
		}
		if retrieved.CreatedAt != createdAt {
			t.Errorf("CreatedAt changed on update: %d -> %d", createdAt, retrieved.CreatedAt)
		}
	})

	t.Run("UpdateExpense returns ErrNotFound", func(t *testing.T) {
		missing := &models.Expense{
			ID:               "nonexistent-id",
			TripID:           trip.ID,
			PayerMemberID:    alice.ID,
			Currency:         "USD",
			Amount:           dec("1"),
			BaseCurrencyRate: dec("1"),
			Kind:             models.ExpenseRegular,
		}
		if err := store.UpdateExpense(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("UpdateExpense error = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteExpense removes expense", func(t *testing.T) {
		expense := &models.Expense{
			TripID:           trip.ID,
			Description:      "Snacks",
			PayerMemberID:    alice.ID,
			Currency:         "USD",
			Amount:           dec("5"),
			BaseCurrencyRate: dec("1"),
			Kind:             models.ExpenseRegular,
			Splits:           []models.Split{{MemberID: alice.ID, Amount: dec("5")}},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		if err := store.DeleteExpense(ctx, expense.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if _, err := store.GetExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetExpense after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteExpense returns ErrNotFound", func(t *testing.T) {
		if err := store.DeleteExpense(ctx, "nonexistent-id"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeleteExpense error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStoreListExpensesFiltersKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip := seedTrip(t, store, "Alice", "Bob")
	alice, bob := trip.Members[0], trip.Members[1]

	regular := &models.Expense{
		TripID:           trip.ID,
		Description:      "Hotel",
		PayerMemberID:    alice.ID,
		Currency:         "USD",
		Amount:           dec("200"),
		BaseCurrencyRate: dec("1"),
		Kind:             models.ExpenseRegular,
		CreatedAt:        100,
		Splits: []models.Split{
			{MemberID: alice.ID, Amount: dec("100")},
			{MemberID: bob.ID, Amount: dec("100")},
		},
	}
	settlement := &models.Expense{
		TripID:           trip.ID,
		Description:      "Settlement: Bob -> Alice",
		PayerMemberID:    bob.ID,
		Currency:         "USD",
		Amount:           dec("100"),
		BaseCurrencyRate: dec("1"),
		Kind:             models.ExpenseSettlement,
		CreatedAt:        200,
		Splits:           []models.Split{{MemberID: alice.ID, Amount: dec("100")}},
	}
	if err := store.CreateExpenses(ctx, []*models.Expense{regular, settlement}); err != nil {
		t.Fatalf("CreateExpenses failed: %v", err)
	}

	tests := []struct {
		name      string
		kind      models.ExpenseKind
		wantCount int
		wantFirst string
	}{
		{name: "all kinds", kind: "", wantCount: 2, wantFirst: "Settlement: Bob -> Alice"},
		{name: "regular only", kind: models.ExpenseRegular, wantCount: 1, wantFirst: "Hotel"},
		{name: "settlements only", kind: models.ExpenseSettlement, wantCount: 1, wantFirst: "Settlement: Bob -> Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expenses, err := store.ListExpenses(ctx, trip.ID, tt.kind)
			if err != nil {
				t.Fatalf("ListExpenses failed: %v", err)
			}
			if len(expenses) != tt.wantCount {
				t.Fatalf("Expenses count = %d, want %d", len(expenses), tt.wantCount)
			}
			if expenses[0].Description != tt.wantFirst {
				t.Errorf("First expense = %q, want %q", expenses[0].Description, tt.wantFirst)
			}
			if len(expenses[0].Splits) == 0 {
				t.Error("Expected splits to be loaded")
			}
		})
	}
}

func TestSQLiteStoreCreateExpensesAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip := seedTrip(t, store, "Alice", "Bob")
	alice := trip.Members[0]

	good := &models.Expense{
		TripID:           trip.ID,
		Description:      "Lunch",
		PayerMemberID:    alice.ID,
		Currency:         "USD",
		Amount:           dec("10"),
		BaseCurrencyRate: dec("1"),
		Kind:             models.ExpenseRegular,
		Splits:           []models.Split{{MemberID: alice.ID, Amount: dec("10")}},
	}
	// Unknown payer violates the foreign key and must abort the batch.
	bad := &models.Expense{
		TripID:           trip.ID,
		Description:      "Ghost",
		PayerMemberID:    "nonexistent-member",
		Currency:         "USD",
		Amount:           dec("10"),
		BaseCurrencyRate: dec("1"),
		Kind:             models.ExpenseRegular,
	}

	if err := store.CreateExpenses(ctx, []*models.Expense{good, bad}); err == nil {
		t.Fatal("Expected batch with bad expense to fail")
	}

	expenses, err := store.ListExpenses(ctx, trip.ID, "")
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("Expenses count after failed batch = %d, want 0", len(expenses))
	}
}
