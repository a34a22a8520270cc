package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/storage"
)

// CreateExpense persists an expense and its splits in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return s.CreateExpenses(ctx, []*models.Expense{expense})
}

// CreateExpenses persists several expenses and their splits in one
// transaction. Conversions write offsetting expense pairs through this so
// either every record lands or none do.
func (s *SQLiteStore) CreateExpenses(ctx context.Context, expenses []*models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, expense := range expenses {
		if err := insertExpenseTx(ctx, tx, expense); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insertExpenseTx writes one expense and its splits inside an open transaction.
func insertExpenseTx(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	var notes interface{} = nil
	if expense.Notes != "" {
		notes = expense.Notes
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (id, trip_id, description, payer_member_id, currency, amount, base_currency_rate, kind, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.TripID, expense.Description, expense.PayerMemberID,
		expense.Currency, expense.Amount.String(), expense.BaseCurrencyRate.String(),
		string(expense.Kind), notes, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Splits {
		split := &expense.Splits[i]
		split.ExpenseID = expense.ID

		_, err = tx.ExecContext(ctx,
			"INSERT INTO splits (expense_id, member_id, amount) VALUES (?, ?, ?)",
			split.ExpenseID, split.MemberID, split.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount, rate string
	var notes sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, trip_id, description, payer_member_id, currency, amount, base_currency_rate, kind, notes, created_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(&expense.ID, &expense.TripID, &expense.Description, &expense.PayerMemberID,
		&expense.Currency, &amount, &rate, &expense.Kind, &notes, &expense.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Amount, err = parseAmount("amount", amount); err != nil {
		return nil, err
	}
	if expense.BaseCurrencyRate, err = parseAmount("base_currency_rate", rate); err != nil {
		return nil, err
	}
	if notes.Valid {
		expense.Notes = notes.String
	}

	if expense.Splits, err = s.listSplits(ctx, expense.ID); err != nil {
		return nil, err
	}

	return expense, nil
}

// ListExpenses retrieves a trip's expenses, newest first, including splits.
// An empty kind returns every expense; otherwise only that kind.
func (s *SQLiteStore) ListExpenses(ctx context.Context, tripID string, kind models.ExpenseKind) ([]*models.Expense, error) {
	query := `SELECT id, trip_id, description, payer_member_id, currency, amount, base_currency_rate, kind, notes, created_at
	 FROM expenses WHERE trip_id = ?`
	args := []interface{}{tripID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense := &models.Expense{}
		var amount, rate string
		var notes sql.NullString

		if err := rows.Scan(&expense.ID, &expense.TripID, &expense.Description, &expense.PayerMemberID,
			&expense.Currency, &amount, &rate, &expense.Kind, &notes, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}

		if expense.Amount, err = parseAmount("amount", amount); err != nil {
			return nil, err
		}
		if expense.BaseCurrencyRate, err = parseAmount("base_currency_rate", rate); err != nil {
			return nil, err
		}
		if notes.Valid {
			expense.Notes = notes.String
		}

		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	// Attach splits after the expense rows are drained.
	for _, expense := range expenses {
		if expense.Splits, err = s.listSplits(ctx, expense.ID); err != nil {
			return nil, err
		}
	}

	return expenses, nil
}

// listSplits retrieves the splits of one expense ordered by member ID.
func (s *SQLiteStore) listSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id, member_id, amount FROM splits WHERE expense_id = ? ORDER BY member_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var split models.Split
		var amount string

		if err := rows.Scan(&split.ExpenseID, &split.MemberID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}

		d, err := parseAmount("split amount", amount)
		if err != nil {
			return nil, err
		}
		split.Amount = d

		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return splits, nil
}

// UpdateExpense replaces an expense row and its whole split set.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", expense.ID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense existence: %w", err)
	}

	var notes interface{} = nil
	if expense.Notes != "" {
		notes = expense.Notes
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET description = ?, payer_member_id = ?, currency = ?, amount = ?, base_currency_rate = ?, kind = ?, notes = ?
		 WHERE id = ?`,
		expense.Description, expense.PayerMemberID, expense.Currency,
		expense.Amount.String(), expense.BaseCurrencyRate.String(), string(expense.Kind), notes,
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	for i := range expense.Splits {
		split := &expense.Splits[i]
		split.ExpenseID = expense.ID

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO splits (expense_id, member_id, amount) VALUES (?, ?, ?)",
			split.ExpenseID, split.MemberID, split.Amount.String(),
		); err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteExpense removes an expense; splits go with it via cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	// Check if expense exists
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", expenseID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense existence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	return nil
}
