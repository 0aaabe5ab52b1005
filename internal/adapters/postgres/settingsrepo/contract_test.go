package settingsrepo

import (
	"testing"

	"github.com/chapter-connect/membership-api/internal/adapters/contracttest"
	"github.com/chapter-connect/membership-api/internal/adapters/postgres/testutil"
	settingsrepoport "github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
)

func TestContract_PostgresSettingsRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunSettingsRepo(t, func(t *testing.T) (settingsrepoport.Repository, func()) {
		t.Helper()
		testutil.TruncateSettings(t, pool)
		return NewRepo(pool), func() { testutil.TruncateSettings(t, pool) }
	})
}
