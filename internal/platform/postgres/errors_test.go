package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

func TestWrapErrorClassifies(t *testing.T) {
	var repoErr repositories.RepositoryError

	err := WrapError("products.get", fmt.Errorf("scan: %w", sql.ErrNoRows))
	assert.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())

	err = WrapError("orders.place", context.DeadlineExceeded)
	assert.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsUnavailable())

	assert.NoError(t, WrapError("x", nil))
	assert.ErrorIs(t, WrapError("x", context.Canceled), context.Canceled)
}

func TestWrapErrorPassesDomainErrors(t *testing.T) {
	err := WrapError("orders.place", domain.ErrProductUnavailable)
	assert.Same(t, domain.ErrProductUnavailable, err)

	nf := NotFound("orders.get", "order")
	assert.Same(t, nf, WrapError("outer", nf))
}
