package config

import (
	"strconv"
	"time"
)

// DomainConfig holds the tunables for the seat inventory and purchase
// pipeline: hold/checkout windows, lock timing, tax rate and the
// defaults used when a hall does not specify its own layout. All of
// these have safe defaults so the service starts in development
// without a populated .env, but every one is overridable per
// environment.
type DomainConfig struct {
	HoldWindow        time.Duration // how long a TEMPORARY selection survives unconfirmed
	CheckoutWindow    time.Duration // grace period granted once a purchase enters PROCESSING
	LockTTL           time.Duration // per-function distributed lock lease
	LockWaitMax       time.Duration // longest a caller will back off waiting for the lock
	LockRetryBase     time.Duration // base delay for the lock's exponential backoff
	TaxRate           float64       // fraction applied to the discounted subtotal
	DefaultSeatsPerRow uint32       // used when a hall record omits SeatCols
	MaxSeatsPerHold   int           // upper bound on seats in a single hold request
	ReaperInterval    time.Duration // tick period for the expiry reaper
	SessionBufferSize int           // buffered outbound messages per realtime session
}

// LoadDomainConfig reads environment variables to build a DomainConfig,
// falling back to defaults tuned for a single-screen cinema when unset.
func LoadDomainConfig() DomainConfig {
	return DomainConfig{
		HoldWindow:         envDur("HOLD_WINDOW", 5*time.Minute),
		CheckoutWindow:     envDur("CHECKOUT_WINDOW", 2*time.Minute),
		LockTTL:            envDur("LOCK_TTL", 8*time.Second),
		LockWaitMax:        envDur("LOCK_WAIT_MAX", 3*time.Second),
		LockRetryBase:      envDur("LOCK_RETRY_BASE", 25*time.Millisecond),
		TaxRate:            envFloat("TAX_RATE", 0.18),
		DefaultSeatsPerRow: uint32(envInt("DEFAULT_SEATS_PER_ROW", 20)),
		MaxSeatsPerHold:    envInt("MAX_SEATS_PER_HOLD", 8),
		ReaperInterval:     envDur("REAPER_INTERVAL", 15*time.Second),
		SessionBufferSize:  envInt("SESSION_BUFFER_SIZE", 64),
	}
}

func envFloat(k string, d float64) float64 {
	v := getenv(k, "")
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}
