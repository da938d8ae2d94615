package cfgutil

import (
	"fmt"
	"strings"

	"github.com/Manta-Network/manta-signer/shielded"
)

// AmountFlag is an amount of a known currency written as "1.5 DOT".  It
// implements the flags.Marshaler and Unmarshaler interfaces so it can be
// used as a config struct field or a command argument.
type AmountFlag struct {
	AssetID shielded.AssetID
	Value   uint64
}

// NewAmountFlag creates an AmountFlag with a default amount.
func NewAmountFlag(assetID shielded.AssetID, value uint64) *AmountFlag {
	return &AmountFlag{AssetID: assetID, Value: value}
}

// MarshalFlag satisifes the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return a.String(), nil
}

// String renders the amount with its currency symbol.
func (a *AmountFlag) String() string {
	amount := shielded.FormatAmount(a.Value, a.AssetID)
	if symbol, ok := shielded.CurrencySymbol(a.AssetID); ok {
		return amount + " " + symbol
	}
	return amount
}

// UnmarshalFlag satisifes the flags.Unmarshaler interface.  The currency
// symbol is required.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return fmt.Errorf("amount %q must be a value and a currency "+
			"symbol, e.g. \"1.5 DOT\"", value)
	}
	currency, err := shielded.CurrencyBySymbol(fields[1])
	if err != nil {
		return err
	}
	v, err := shielded.ParseAmount(fields[0], currency.ID)
	if err != nil {
		return err
	}
	a.AssetID, a.Value = currency.ID, v
	return nil
}
