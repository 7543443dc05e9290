// Package models defines the core data structures used throughout FolioIQ.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Monetary fields go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Symbol constraints for holdings.
const (
	MaxSymbolLen = 20
	MaxThesisLen = 1000
)

// Holding is a single position inside a portfolio.
type Holding struct {
	ID        uuid.UUID       `json:"id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	Thesis    *string         `json:"thesis"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Portfolio is a named, ordered collection of holdings.
// Holding order is insertion order and carries no business meaning,
// but briefing responses preserve it.
type Portfolio struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Holdings  []Holding `json:"holdings"`
}

// Symbols returns the distinct holding symbols in insertion order.
func (p *Portfolio) Symbols() []string {
	seen := make(map[string]bool, len(p.Holdings))
	symbols := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateHolding checks holding fields against the model constraints.
func ValidateHolding(symbol string, quantity, avgCost decimal.Decimal, thesis *string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(symbol) > MaxSymbolLen {
		return fmt.Errorf("symbol exceeds %d characters", MaxSymbolLen)
	}
	if quantity.IsNegative() {
		return fmt.Errorf("quantity must be non-negative")
	}
	if avgCost.IsNegative() {
		return fmt.Errorf("avg_cost must be non-negative")
	}
	if thesis != nil && len(*thesis) > MaxThesisLen {
		return fmt.Errorf("thesis exceeds %d characters", MaxThesisLen)
	}
	return nil
}
