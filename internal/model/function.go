package model

import "time"

// FunctionStatus enumerates the lifecycle of a scheduled screening.
type FunctionStatus string

const (
	FunctionScheduled FunctionStatus = "SCHEDULED"
	FunctionCancelled FunctionStatus = "CANCELLED"
	FunctionFinished  FunctionStatus = "FINISHED"
)

// Function represents a scheduled screening of a film in a particular
// hall.  It is the aggregate root that the seat inventory, the lock
// manager and the realtime hub all key off of: every cache key, bitmap
// and session group in the system is namespaced by FunctionID.
//
// SeatsPerRow is snapshotted from the hall at creation time rather than
// looked up again later — the seat bitmap offset formula depends on it
// and must stay stable for the lifetime of the function even if the hall
// layout is edited afterwards.
//
// Fields:
//  ID             – primary key identifier.
//  HallID         – hall where the function is taking place.
//  FilmID         – external or internal identifier of the film.
//  Title          – movie title or an external reference.
//  Language       – audio language code (e.g. "en", "es").
//  Subtitled      – whether subtitles are burned in / available.
//  StartsAt       – when the function begins.
//  EndsAt         – when the function ends (must be after StartsAt).
//  BasePriceCents – price in cents for STANDARD tier seats.
//  VIPPriceCents  – price in cents for VIP tier seats.
//  SeatsPerRow    – snapshot of the hall's seats-per-row at creation,
//                   used as the stride for the seat bitmap offset.
//  Status         – current state of the function.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Function struct {
	ID             uint64         // functions.id
	HallID         uint64         // functions.hall_id
	FilmID         uint64         // functions.film_id
	Title          string         // functions.title
	Language       string         // functions.language
	Subtitled      bool           // functions.subtitled
	StartsAt       time.Time      // functions.starts_at
	EndsAt         time.Time      // functions.ends_at
	BasePriceCents int64          // functions.base_price_cents
	VIPPriceCents  int64          // functions.vip_price_cents
	SeatsPerRow    uint32         // functions.seats_per_row
	Status         FunctionStatus // functions.status
	CreatedAt      time.Time      // functions.created_at
	UpdatedAt      time.Time      // functions.updated_at
}

// PriceFor returns the base unit price in cents for a seat of the given
// tier, before any per-seat surcharge, customer discount or promo code
// is applied.
func (f Function) PriceFor(tier SeatTier) int64 {
	if tier == TierVIP {
		return f.VIPPriceCents
	}
	return f.BasePriceCents
}

// SalesOpen reports whether new holds or purchases may still be made
// against this function.
func (f Function) SalesOpen(now time.Time) bool {
	return f.Status == FunctionScheduled && now.Before(f.StartsAt)
}
