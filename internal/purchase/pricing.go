package purchase

import (
	"context"
	"math"

	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/repository"
)

// SeatPricer resolves a seat code to its tier and unit price so the
// coordinator can price a line item. Split out from the store package
// because pricing reads from the administrative seat catalog
// (hall/seat), not the selection/transaction aggregates the Durable
// Store interface otherwise covers.
type SeatPricer interface {
	PriceSeat(ctx context.Context, f model.Function, row string, number uint32) (model.SeatTier, int64, error)
}

// repoPricer adapts the owner-facing seat catalog (internal/repository)
// into a SeatPricer for the purchase pipeline.
type repoPricer struct {
	seats *repository.SeatRepo
}

// NewRepoPricer builds a SeatPricer backed by the seat catalog
// repository.
func NewRepoPricer(seats *repository.SeatRepo) SeatPricer {
	return &repoPricer{seats: seats}
}

func (p *repoPricer) PriceSeat(ctx context.Context, f model.Function, row string, number uint32) (model.SeatTier, int64, error) {
	seat, err := p.seats.GetByHallRowNumber(ctx, f.HallID, row, number)
	if err != nil {
		return "", 0, err
	}
	tier := model.SeatTier(seat.SeatType)
	price := f.PriceFor(tier)
	return tier, price, nil
}

// roundHalfToEven rounds cents using banker's rounding, matching how
// the original tax calculation avoided the small systematic upward
// bias plain round-half-up introduces across many transactions.
func roundHalfToEven(cents float64) int64 {
	return int64(math.RoundToEven(cents))
}

// priceLineItems prices every seat, applies the combined discount
// fraction to each line, and returns the line items alongside the
// pre-discount subtotal and the total discount removed, all in cents.
func priceLineItems(ctx context.Context, pricer SeatPricer, f model.Function, codes []string, discount float64) ([]model.SeatLineItem, int64, int64, error) {
	items := make([]model.SeatLineItem, 0, len(codes))
	var subtotal int64
	for _, code := range codes {
		row, num, err := inventory.SplitSeatCode(code)
		if err != nil {
			return nil, 0, 0, err
		}
		tier, unit, err := pricer.PriceSeat(ctx, f, row, num)
		if err != nil {
			return nil, 0, 0, err
		}
		final := roundHalfToEven(float64(unit) * (1 - discount))
		items = append(items, model.SeatLineItem{
			SeatCode:        code,
			Tier:            tier,
			UnitPriceCents:  unit,
			DiscountApplied: discount,
			FinalPriceCents: final,
		})
		subtotal += unit
	}
	var discounted int64
	for _, it := range items {
		discounted += it.FinalPriceCents
	}
	return items, subtotal, subtotal - discounted, nil
}
