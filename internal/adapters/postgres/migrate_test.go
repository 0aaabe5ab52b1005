package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/adapters/postgres/testutil"
	"github.com/chapter-connect/membership-api/internal/authz"
)

func TestMigrate_InstallsPolicies(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()

	// Migrating twice is a no-op.
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	for _, p := range authz.PostgresPolicies() {
		if p.Table == authz.TableMembershipReport {
			continue
		}
		var n int
		if err := pool.QueryRow(ctx, `SELECT count(*) FROM pg_policies WHERE tablename = $1 AND policyname = $2`, string(p.Table), p.Name).Scan(&n); err != nil {
			t.Fatalf("query pg_policies: %v", err)
		}
		if n != 1 {
			t.Fatalf("policy %s on %s not installed", p.Name, p.Table)
		}
	}
}

func TestInIdentityTx_SetsIdentity(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	var got, role string
	err := postgres.InIdentityTx(context.Background(), pool, "nobody-in-particular", func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(), `SELECT app_current_identity(), app_current_role()`).Scan(&got, &role)
	})
	if err != nil {
		t.Fatalf("InIdentityTx: %v", err)
	}
	if got != "nobody-in-particular" || role != string(authz.RoleGuest) {
		t.Fatalf("unexpected identity/role: %q %q", got, role)
	}
}

func TestMigrate_DefinerFunctionsPinSearchPath(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	for _, fn := range []string{"app_current_identity", "app_current_role"} {
		var cfg []string
		if err := pool.QueryRow(context.Background(),
			`SELECT coalesce(proconfig, '{}') FROM pg_proc WHERE proname = $1`, fn).Scan(&cfg); err != nil {
			t.Fatalf("query pg_proc %s: %v", fn, err)
		}
		found := false
		for _, c := range cfg {
			if c == "search_path=public" {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s config = %v, want search_path=public", fn, cfg)
		}
	}
}

func insertProfile(t *testing.T, pool *pgxpool.Pool, id, role string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO profiles (id, role, status, created_at, updated_at) VALUES ($1, $2, 'active', now(), now())`, id, role)
	if err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func TestColumnGuard_OwnerCannotChangeOwnRole(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()
	guest := "guard-guest-" + uuid.NewString()
	admin := "guard-admin-" + uuid.NewString()
	insertProfile(t, pool, guest, "guest")
	insertProfile(t, pool, admin, "admin")

	err := postgres.InIdentityTx(ctx, pool, guest, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE profiles SET role = 'admin' WHERE id = $1`, guest)
		return err
	})
	if pe, ok := postgres.AsPgError(err); !ok || pe.Code != "42501" {
		t.Fatalf("expected insufficient_privilege, got %v", err)
	}

	err = postgres.InIdentityTx(ctx, pool, guest, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE profiles SET first_name = 'Gus' WHERE id = $1`, guest)
		return err
	})
	if err != nil {
		t.Fatalf("owner contact update: %v", err)
	}

	err = postgres.InIdentityTx(ctx, pool, admin, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE profiles SET role = 'member' WHERE id = $1`, guest)
		return err
	})
	if err != nil {
		t.Fatalf("admin role change: %v", err)
	}
}

func TestDeleteProfile_CascadesInOneStatement(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()
	id := "cascade-" + uuid.NewString()
	insertProfile(t, pool, id, "member")

	_, err := pool.Exec(ctx, `INSERT INTO memberships (id, profile_id, type, payment_cadence, fee_minor, currency, status, start_date, expiry_date, member_number, created_at, updated_at)
		VALUES ($1, $2, 'local', 'yearly', 0, 'USD', 'active', '2025-01-01', '2026-01-01', $1, now(), now())`, uuid.NewString(), id)
	if err != nil {
		t.Fatalf("insert membership: %v", err)
	}
	logID := uuid.NewString()
	_, err = pool.Exec(ctx, `INSERT INTO message_logs (id, recipient_id, channel, content, status, created_at) VALUES ($1, $2, 'email', 'hi', 'sent', now())`, logID, id)
	if err != nil {
		t.Fatalf("insert log: %v", err)
	}

	if _, err := pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM memberships WHERE profile_id = $1`, id).Scan(&n); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if n != 0 {
		t.Fatalf("membership survived its profile")
	}
	var recipient *string
	if err := pool.QueryRow(ctx, `SELECT recipient_id FROM message_logs WHERE id = $1`, logID).Scan(&recipient); err != nil {
		t.Fatalf("read log: %v", err)
	}
	if recipient != nil {
		t.Fatalf("log recipient not detached: %q", *recipient)
	}
}
