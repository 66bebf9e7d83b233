package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCodeHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation: http.StatusBadRequest,
		CodeDuplicate:  http.StatusConflict,
		CodeConflict:   http.StatusConflict,
		CodeNotFound:   http.StatusNotFound,
		CodeInternal:   http.StatusInternalServerError,
		CodeTimeout:    http.StatusServiceUnavailable,
		Code("other"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
	assert.True(t, CodeTimeout.Retryable())
	assert.False(t, CodeDuplicate.Retryable())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("gate: %w", Duplicate("already evaluated"))
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestFromClassifies(t *testing.T) {
	assert.Equal(t, CodeTimeout, From(context.DeadlineExceeded).Code)
	assert.Equal(t, CodeTimeout, From(fmt.Errorf("tx: %w", context.Canceled)).Code)
	assert.Equal(t, CodeNotFound, From(gorm.ErrRecordNotFound).Code)
	assert.Equal(t, CodeDuplicate, From(&pgconn.PgError{Code: "23505"}).Code)
	assert.Equal(t, CodeInternal, From(errors.New("boom")).Code)
	assert.Nil(t, From(nil))

	orig := Conflict("diverges")
	assert.Same(t, orig, From(fmt.Errorf("wrapped: %w", orig)))
}

func TestPublicMessageRedactsInternal(t *testing.T) {
	err := Internal("write evaluation", errors.New("pq: connection reset"))
	assert.Equal(t, "internal server error", err.PublicMessage(false))
	assert.Contains(t, err.PublicMessage(true), "connection reset")

	assert.Equal(t, "already evaluated", Duplicate("already evaluated").PublicMessage(false))
}
