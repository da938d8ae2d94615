package shielded

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AssetID identifies a ledger asset.
type AssetID uint32

// Currency describes how an asset's integer value is displayed.
type Currency struct {
	ID       AssetID
	Symbol   string
	Decimals int
}

// Known assets.
const (
	AssetDOT AssetID = 1
	AssetKSM AssetID = 2
)

var currencies = map[AssetID]Currency{
	AssetDOT: {ID: AssetDOT, Symbol: "DOT", Decimals: 10},
	AssetKSM: {ID: AssetKSM, Symbol: "KSM", Decimals: 12},
}

// ErrUnknownCurrency is returned when a symbol or id has no currency entry.
var ErrUnknownCurrency = errors.New("unknown currency")

// LookupCurrency returns the currency of id.
func LookupCurrency(id AssetID) (Currency, bool) {
	c, ok := currencies[id]
	return c, ok
}

// CurrencyBySymbol returns the currency with the given ticker symbol.  The
// comparison ignores case.
func CurrencyBySymbol(symbol string) (Currency, error) {
	for _, c := range currencies {
		if strings.EqualFold(c.Symbol, symbol) {
			return c, nil
		}
	}
	return Currency{}, fmt.Errorf("%w %q", ErrUnknownCurrency, symbol)
}

// CurrencySymbol returns the ticker of id, or false for unknown ids.
func CurrencySymbol(id AssetID) (string, bool) {
	c, ok := currencies[id]
	return c.Symbol, ok
}

// FormatAmount renders value in whole units of id without trailing zeros.
// Values of unknown assets are rendered as plain integers.
func FormatAmount(value uint64, id AssetID) string {
	s := strconv.FormatUint(value, 10)
	c, ok := currencies[id]
	if !ok || c.Decimals == 0 {
		return s
	}

	if len(s) <= c.Decimals {
		s = strings.Repeat("0", c.Decimals-len(s)+1) + s
	}
	whole := s[:len(s)-c.Decimals]
	frac := strings.TrimRight(s[len(s)-c.Decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ParseAmount is the inverse of FormatAmount.  It rejects amounts with more
// fractional digits than the currency carries and amounts that overflow.
func ParseAmount(amount string, id AssetID) (uint64, error) {
	decimals := 0
	if c, ok := currencies[id]; ok {
		decimals = c.Decimals
	}

	whole, frac, hasFrac := strings.Cut(strings.TrimSpace(amount), ".")
	if whole == "" && !hasFrac {
		return 0, errors.New("empty amount")
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid amount %q", amount)
		}
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("amount %q exceeds %d", amount, uint64(math.MaxUint64))
		}
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return v, nil
}
