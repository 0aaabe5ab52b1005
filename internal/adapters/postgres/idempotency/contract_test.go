package idempotency

import (
	"testing"
	"time"

	"github.com/chapter-connect/membership-api/internal/adapters/contracttest"
	"github.com/chapter-connect/membership-api/internal/adapters/postgres/testutil"
	idempotencyport "github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool, 24*time.Hour), nil
	})
}
