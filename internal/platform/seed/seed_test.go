package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memboard "github.com/chapter-connect/membership-api/internal/adapters/memory/boardrepo"
	memmembership "github.com/chapter-connect/membership-api/internal/adapters/memory/membershiprepo"
	memprofile "github.com/chapter-connect/membership-api/internal/adapters/memory/profilerepo"
	memtemplate "github.com/chapter-connect/membership-api/internal/adapters/memory/templaterepo"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	repos := Repos{
		Profiles:    memprofile.NewRepo(),
		Memberships: memmembership.NewRepo(),
		Board:       memboard.NewRepo(),
		Templates:   memtemplate.NewRepo(),
	}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, LoadFile(ctx, "testdata/chapter.yaml", repos, now))

	admin, err := repos.Profiles.Get(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, admin.Role)
	assert.Equal(t, domain.ProfileActive, admin.Status)

	mel, err := repos.Profiles.Get(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, "Mel Member", mel.FirstName)
	require.NotNil(t, mel.Phone)
	assert.Equal(t, "15551234567", *mel.Phone)

	m, err := repos.Memberships.GetByProfile(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Fee.Currency)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), m.ExpiryDate)
	assert.NotEmpty(t, m.MemberNumber)

	board, err := repos.Board.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "President", board[0].Title)

	tmpls, err := repos.Templates.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, tmpls, 1)
	assert.Equal(t, []string{"first_name", "member_number"}, tmpls[0].Variables)

	// Re-applying skips existing profiles.
	require.NoError(t, LoadFile(ctx, "testdata/chapter.yaml", Repos{Profiles: repos.Profiles}, now))
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("profiles:\n  - id: x\n    nickname: y\n"))
	assert.Error(t, err)
}

func TestApply_InvalidRole(t *testing.T) {
	f, err := Parse([]byte("profiles:\n  - id: x\n    role: superuser\n"))
	require.NoError(t, err)
	err = Apply(context.Background(), f, Repos{Profiles: memprofile.NewRepo()}, time.Now())
	assert.ErrorContains(t, err, "invalid role")
}
