package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsDefaultPortfolio(t *testing.T) {
	s := newTestStore(t)

	portfolios, err := s.ListPortfolios(context.Background())
	if err != nil {
		t.Fatalf("ListPortfolios: %v", err)
	}
	if len(portfolios) != 1 {
		t.Fatalf("got %d portfolios, want 1 seeded", len(portfolios))
	}
	if portfolios[0].Name != "Default" {
		t.Errorf("seeded portfolio name = %q, want Default", portfolios[0].Name)
	}
	if portfolios[0].Holdings == nil {
		t.Error("Holdings should be an empty slice, not nil")
	}
}

func TestCreateAndGetPortfolio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePortfolio(ctx, "Growth")
	if err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}

	got, err := s.GetPortfolio(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if got.Name != "Growth" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Holdings) != 0 {
		t.Errorf("new portfolio has %d holdings", len(got.Holdings))
	}
}

func TestGetPortfolioNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPortfolio(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddHolding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePortfolio(ctx, "Tech")
	if err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}

	thesis := "durable ecosystem moat"
	h, err := s.AddHolding(ctx, p.ID, " aapl ",
		decimal.NewFromInt(10), decimal.NewFromFloat(150.5), &thesis)
	if err != nil {
		t.Fatalf("AddHolding: %v", err)
	}
	if h.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want normalized AAPL", h.Symbol)
	}

	got, err := s.GetPortfolio(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(got.Holdings) != 1 {
		t.Fatalf("got %d holdings, want 1", len(got.Holdings))
	}
	stored := got.Holdings[0]
	if !stored.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Quantity = %s", stored.Quantity)
	}
	if !stored.AvgCost.Equal(decimal.NewFromFloat(150.5)) {
		t.Errorf("AvgCost = %s", stored.AvgCost)
	}
	if stored.Thesis == nil || *stored.Thesis != thesis {
		t.Errorf("Thesis = %v", stored.Thesis)
	}
}

func TestHoldingsKeepInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePortfolio(ctx, "Ordered")
	if err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}

	// Rapid inserts land on identical timestamps; order must still hold.
	symbols := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("S%02d", i)
		if _, err := s.AddHolding(ctx, p.ID, sym, decimal.NewFromInt(1), decimal.NewFromInt(10), nil); err != nil {
			t.Fatalf("AddHolding %s: %v", sym, err)
		}
		symbols = append(symbols, sym)
	}

	got, err := s.GetPortfolio(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(got.Holdings) != len(symbols) {
		t.Fatalf("holdings = %d, want %d", len(got.Holdings), len(symbols))
	}
	for i, h := range got.Holdings {
		if h.Symbol != symbols[i] {
			t.Fatalf("holding %d = %s, want %s", i, h.Symbol, symbols[i])
		}
	}
}

func TestAddHoldingNilThesis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePortfolio(ctx, "Tech")
	if _, err := s.AddHolding(ctx, p.ID, "MSFT",
		decimal.NewFromInt(5), decimal.NewFromInt(300), nil); err != nil {
		t.Fatalf("AddHolding: %v", err)
	}

	got, _ := s.GetPortfolio(ctx, p.ID)
	if got.Holdings[0].Thesis != nil {
		t.Errorf("Thesis = %v, want nil", got.Holdings[0].Thesis)
	}
}

func TestAddHoldingValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreatePortfolio(ctx, "Tech")

	if _, err := s.AddHolding(ctx, p.ID, "AAPL",
		decimal.NewFromInt(-1), decimal.NewFromInt(100), nil); err == nil {
		t.Error("negative quantity should be rejected")
	}
	if _, err := s.AddHolding(ctx, p.ID, "",
		decimal.NewFromInt(1), decimal.NewFromInt(100), nil); err == nil {
		t.Error("empty symbol should be rejected")
	}
}

func TestAddHoldingUnknownPortfolio(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddHolding(context.Background(), uuid.New(), "AAPL",
		decimal.NewFromInt(1), decimal.NewFromInt(100), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteHolding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePortfolio(ctx, "Tech")
	h, _ := s.AddHolding(ctx, p.ID, "NVDA",
		decimal.NewFromInt(2), decimal.NewFromInt(400), nil)

	if err := s.DeleteHolding(ctx, p.ID, h.ID); err != nil {
		t.Fatalf("DeleteHolding: %v", err)
	}
	got, _ := s.GetPortfolio(ctx, p.ID)
	if len(got.Holdings) != 0 {
		t.Errorf("holdings remain after delete: %d", len(got.Holdings))
	}

	if err := s.DeleteHolding(ctx, p.ID, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
