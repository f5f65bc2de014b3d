package util_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/artisansflow/portal/pkg/util"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain_error", util.NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped_domain_error", fmt.Errorf("outer: %w", util.NewUnauthorized("who")), "UNAUTHORIZED", http.StatusUnauthorized},
		{"fiber_error", fiber.NewError(http.StatusBadRequest, "invalid payload"), "BAD_REQUEST", http.StatusBadRequest},
		{"no_rows", fmt.Errorf("lookup: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"generic", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := util.ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}

	assert.Nil(t, util.ToDomainError(nil))
	assert.NoError(t, util.MapError(nil))
}

func TestUpstreamErrorDefaultsToBadGateway(t *testing.T) {
	cause := errors.New("connection refused")
	de := util.ToDomainError(util.NewUpstreamError("provider unreachable", 0, cause))

	assert.Equal(t, http.StatusBadGateway, de.HTTPStatus)
	assert.ErrorIs(t, de, cause)
	assert.Contains(t, de.Error(), "connection refused")
}
