package bizerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindTooManySeats, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindSeatUnavailable, http.StatusConflict},
		{KindHoldLost, http.StatusConflict},
		{KindConflict, http.StatusConflict},
		{KindSalesClosed, http.StatusGone},
		{KindLockBusy, http.StatusTooManyRequests},
		{KindPaymentDeclined, http.StatusPaymentRequired},
		{KindPaymentUnavailable, http.StatusServiceUnavailable},
		{KindStoreUnavailable, http.StatusServiceUnavailable},
		{Kind("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			e := New(tc.kind, "x")
			assert.Equal(t, tc.want, e.HTTPStatus())
		})
	}
}

func TestSeatUnavailable_CarriesConflicts(t *testing.T) {
	err := SeatUnavailable([]string{"A1", "A2"})
	assert.Equal(t, KindSeatUnavailable, err.Kind)
	assert.Equal(t, []string{"A1", "A2"}, err.Conflicts)
	assert.True(t, err.Retryable)
}

func TestAs_UnwrapsThroughFmtErrorf(t *testing.T) {
	base := NotFound("function")
	wrapped := fmt.Errorf("loading function: %w", base)

	be, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, be.Kind)
}

func TestAs_FalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestWrap_PreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := StoreUnavailable(cause)
	assert.ErrorIs(t, err, cause)
}
