package models

// Trip represents a trip whose expenses are tracked together.
// All cross-currency balances are normalized into the trip's base currency.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string `json:"id"`

	// Name is the display name of the trip (e.g., "Japan 2026").
	Name string `json:"name"`

	// BaseCurrency is the ISO 4217 code balances are normalized into.
	BaseCurrency string `json:"base_currency"`

	// CreatedAt is the Unix timestamp when the trip was created.
	CreatedAt int64 `json:"created_at"`

	// Members are the trip participants. Populated on single-trip reads.
	Members []Member `json:"members,omitempty"`
}

// Member represents one participant in a trip. The ledger only ever
// references members by ID; the name is display-only.
type Member struct {
	// ID is the unique identifier for the member (UUID format).
	ID string `json:"id"`

	// TripID is the trip this member belongs to.
	TripID string `json:"trip_id"`

	// Name is the member's display name.
	Name string `json:"name"`

	// CreatedAt is the Unix timestamp when the member was added.
	CreatedAt int64 `json:"created_at"`
}
