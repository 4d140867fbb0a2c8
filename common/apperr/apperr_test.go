package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{New(ValidationRejected, "missing_fields", "m"), http.StatusBadRequest},
		{New(ValidationRejected, "schema_validation", "m"), http.StatusUnprocessableEntity},
		{New(Unauthorized, "missing_credentials", "m"), http.StatusUnauthorized},
		{New(Forbidden, "nope", "m"), http.StatusForbidden},
		{New(NotFound, "missing", "m"), http.StatusNotFound},
		{New(Conflict, "taken", "m"), http.StatusConflict},
		{New(Unreachable, "down", "m"), http.StatusServiceUnavailable},
		{New(Timeout, "slow", "m"), http.StatusGatewayTimeout},
		{New(RemoteError, "bad", "m"), http.StatusBadGateway},
		{New(Internal, "boom", "m"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Code)
	}
}

func TestFromPreservesTypedErrors(t *testing.T) {
	typed := New(Conflict, "visit_time_conflict", "overlap")
	wrapped := fmt.Errorf("creating visit: %w", typed)

	got := From(wrapped)
	assert.Equal(t, Conflict, got.Kind)
	assert.Equal(t, "visit_time_conflict", got.Code)
}

func TestFromWrapsUntypedAsInternal(t *testing.T) {
	got := From(errors.New("pq: connection refused"))
	assert.Equal(t, Internal, got.Kind)
	assert.Equal(t, "internal_error", got.Code)
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(NotFound, "order_not_found", "gone"))
	assert.True(t, IsKind(err, NotFound))
	assert.False(t, IsKind(err, Conflict))
	assert.False(t, IsKind(errors.New("plain"), NotFound))
}

func TestWithDetailsCopies(t *testing.T) {
	base := New(Conflict, "insufficient_inventory", "not enough stock")
	detailed := base.WithDetails(map[string]any{"available": 3})

	assert.Nil(t, base.Details)
	assert.Equal(t, 3, detailed.Details["available"])

	envelope := detailed.ToEnvelope()
	assert.Equal(t, "insufficient_inventory", envelope.ErrorCode)
	assert.Equal(t, string(Conflict), envelope.Type)
}
