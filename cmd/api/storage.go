package main

import (
	"context"
	"fmt"

	"github.com/chapter-connect/membership-api/internal/adapters/memory/boardrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/crmrepo"
	memidempotency "github.com/chapter-connect/membership-api/internal/adapters/memory/idempotency"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/membershiprepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/profilerepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/settingsrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/templaterepo"
	"github.com/chapter-connect/membership-api/internal/adapters/postgres"
	pgboardrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/boardrepo"
	pgcrmrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/crmrepo"
	pgidempotency "github.com/chapter-connect/membership-api/internal/adapters/postgres/idempotency"
	pgmembershiprepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/membershiprepo"
	pgmessagelogrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/messagelogrepo"
	pgprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/profilerepo"
	pgsettingsrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/settingsrepo"
	pgtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/templaterepo"
	"github.com/chapter-connect/membership-api/internal/platform/config"
	"github.com/chapter-connect/membership-api/internal/platform/seed"
	boardrepoport "github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	crmrepoport "github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
	idempotencyport "github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
	membershiprepoport "github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	messagelogrepoport "github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	settingsrepoport "github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
	templaterepoport "github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

type storage struct {
	profiles    profilerepoport.Repository
	memberships membershiprepoport.Repository
	board       boardrepoport.Repository
	templates   templaterepoport.Repository
	logs        messagelogrepoport.Repository
	settings    settingsrepoport.Repository
	crm         crmrepoport.Repository
	idem        idempotencyport.Store

	close func()
}

func openStorage(ctx context.Context, cfg config.Config, clk clockport.Clock) (*storage, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &storage{
			profiles:    pgprofilerepo.NewRepo(pool),
			memberships: pgmembershiprepo.NewRepo(pool),
			board:       pgboardrepo.NewRepo(pool),
			templates:   pgtemplaterepo.NewRepo(pool),
			logs:        pgmessagelogrepo.NewRepo(pool),
			settings:    pgsettingsrepo.NewRepo(pool),
			crm:         pgcrmrepo.NewRepo(pool),
			idem:        pgidempotency.NewStore(pool, cfg.IdempotencyTTL),
			close:       pool.Close,
		}, nil
	default:
		st := &storage{
			profiles:    profilerepo.NewRepo(),
			memberships: membershiprepo.NewRepo(),
			board:       boardrepo.NewRepo(),
			templates:   templaterepo.NewRepo(),
			logs:        messagelogrepo.NewRepo(),
			settings:    settingsrepo.NewRepo(),
			crm:         crmrepo.NewRepo(),
			idem:        memidempotency.NewStoreWithTTL(cfg.IdempotencyTTL, clk.Now),
			close:       func() {},
		}
		if cfg.SeedFile != "" {
			err := seed.LoadFile(ctx, cfg.SeedFile, seed.Repos{
				Profiles:    st.profiles,
				Memberships: st.memberships,
				Board:       st.board,
				Templates:   st.templates,
			}, clk.Now())
			if err != nil {
				return nil, fmt.Errorf("seed %s: %w", cfg.SeedFile, err)
			}
		}
		return st, nil
	}
}
