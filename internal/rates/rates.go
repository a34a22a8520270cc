// Package rates resolves exchange rates between currencies.
//
// Live rates come from the open.er-api.com endpoint and are cached
// in-process for a configurable TTL; concurrent cache misses collapse into
// a single fetch. When the provider is unreachable a static fallback table
// keeps conversion working at approximate rates.
package rates

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Source resolves the multiplicative factor converting one currency into
// another. Implementations must treat identical currencies as rate 1.
type Source interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ErrUnknownCurrency is returned when neither the provider nor the
// fallback table knows a currency.
var ErrUnknownCurrency = errors.New("unknown currency")

// fallbackUSD holds the USD value of one unit of each supported currency,
// used when the live provider is unavailable. Covers every currency in the
// models registry.
var fallbackUSD = map[string]decimal.Decimal{
	"USD": decimal.NewFromFloat(1.0),
	"EUR": decimal.NewFromFloat(1.18),
	"GBP": decimal.NewFromFloat(1.35),
	"JPY": decimal.NewFromFloat(0.0064),
	"KRW": decimal.NewFromFloat(0.00072),
	"SGD": decimal.NewFromFloat(0.74),
	"CNY": decimal.NewFromFloat(0.14),
	"CAD": decimal.NewFromFloat(0.73),
	"AUD": decimal.NewFromFloat(0.67),
}
