// Package models defines the core domain models for TripLedger.
//
// # Persisted Models
//
//   - Trip: A trip with a base currency, owning members and expenses
//   - Member: A participant in a trip, referenced by ID everywhere else
//   - Expense: A recorded spend or settlement payment in one currency
//   - Split: One member's share of an expense's total
//
// # Derived Models
//
// The following are never persisted; they are recomputed from the full
// expense history on every read:
//
//   - Balance: Per-member totals and per-currency net positions
//   - Debt: A netted pairwise obligation in one currency
//   - SettlementPlan: The suggested payments that would clear all debts
//
// # Design Principles
//
//  1. Monetary amounts are decimal.Decimal, never floats
//  2. Relationships use ID strings, not pointers, to avoid cycles
//  3. Expenses are immutable once written except through a full edit that
//     regenerates the split set
package models
