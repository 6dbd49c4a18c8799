package model

import (
	"fmt"

	"amc-subscription/internal/domain"
)

const (
	// DefaultUnitPrice is the yearly AMC charge per covered system, in major units.
	DefaultUnitPrice int64 = 999
	// MinorUnitsPerMajor converts rupees to paise for the gateway.
	MinorUnitsPerMajor int64 = 100
	DefaultCurrency          = "INR"
)

// Quote is the priced result for a number of systems.
type Quote struct {
	SystemCount int
	UnitPrice   int64
	Amount      int64 // major units
	AmountMinor int64 // gateway's smallest unit
}

// Pricing computes and re-checks AMC charges.
type Pricing struct {
	UnitPrice int64
}

func NewPricing(unitPrice int64) Pricing {
	if unitPrice <= 0 {
		unitPrice = DefaultUnitPrice
	}
	return Pricing{UnitPrice: unitPrice}
}

func (p Pricing) unit() int64 {
	if p.UnitPrice <= 0 {
		return DefaultUnitPrice
	}
	return p.UnitPrice
}

// Quote prices systemCount systems. A non-positive count or an amount that is
// not an exact multiple of the unit price is rejected, never corrected.
func (p Pricing) Quote(systemCount int) (Quote, error) {
	if systemCount <= 0 {
		return Quote{}, fmt.Errorf("%w: system count must be a positive integer", domain.ErrValidation)
	}
	unit := p.unit()
	amount := int64(systemCount) * unit
	if amount%unit != 0 || amount/unit != int64(systemCount) {
		return Quote{}, fmt.Errorf("%w: invalid amount for %d systems", domain.ErrValidation, systemCount)
	}
	minor := amount * MinorUnitsPerMajor
	if minor/MinorUnitsPerMajor != amount {
		return Quote{}, fmt.Errorf("%w: amount out of range", domain.ErrValidation)
	}
	return Quote{
		SystemCount: systemCount,
		UnitPrice:   unit,
		Amount:      amount,
		AmountMinor: minor,
	}, nil
}

// CheckAmount re-derives the expected charge for a stored intent.
func (p Pricing) CheckAmount(amount int64, systemCount int) error {
	unit := p.unit()
	expected := int64(systemCount) * unit
	if systemCount <= 0 || amount != expected || expected%unit != 0 {
		return fmt.Errorf("%w: stored amount %d does not match %d x %d", domain.ErrAmountMismatch, amount, systemCount, unit)
	}
	return nil
}
