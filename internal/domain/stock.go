package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a tradable symbol with its latest quoted price.
type Stock struct {
	Symbol        string
	Name          string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	UpdatedAt     time.Time
}

// Change returns the absolute move from the previous close.
func (s *Stock) Change() decimal.Decimal {
	return s.Price.Sub(s.PreviousClose)
}

// ChangePercent returns the move from the previous close in percent.
func (s *Stock) ChangePercent() decimal.Decimal {
	return Percent(s.Change(), s.PreviousClose)
}
