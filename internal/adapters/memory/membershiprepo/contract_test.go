package membershiprepo

import (
	"testing"

	"github.com/chapter-connect/membership-api/internal/adapters/contracttest"
	memprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/memory/profilerepo"
	membershiprepoport "github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

func TestContract_MembershipRepo(t *testing.T) {
	contracttest.RunMembershipRepo(t, newProfiles, func(t *testing.T) (membershiprepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	})
}

func newProfiles(t *testing.T) (profilerepoport.Repository, func()) {
	t.Helper()
	return memprofilerepo.NewRepo(), nil
}
