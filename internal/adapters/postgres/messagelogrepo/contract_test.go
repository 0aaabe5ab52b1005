package messagelogrepo

import (
	"testing"

	"github.com/chapter-connect/membership-api/internal/adapters/contracttest"
	pgprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/profilerepo"
	pgtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/templaterepo"
	"github.com/chapter-connect/membership-api/internal/adapters/postgres/testutil"
	messagelogrepoport "github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	templaterepoport "github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

func TestContract_PostgresMessageLogRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunMessageLogRepo(t,
		func(t *testing.T) (profilerepoport.Repository, func()) {
			t.Helper()
			return pgprofilerepo.NewRepo(pool), nil
		},
		func(t *testing.T) (templaterepoport.Repository, func()) {
			t.Helper()
			return pgtemplaterepo.NewRepo(pool), nil
		},
		func(t *testing.T) (messagelogrepoport.Repository, func()) {
			t.Helper()
			return NewRepo(pool), nil
		},
	)
}
