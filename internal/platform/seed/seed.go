// Package seed loads YAML fixtures into repositories. It writes below the authorization
// layer and is only wired for local development against the memory backend.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

const dateLayout = "2006-01-02"

type File struct {
	Profiles  []Profile  `yaml:"profiles"`
	Board     []Position `yaml:"boardPositions"`
	Templates []Template `yaml:"templates"`
}

type Profile struct {
	ID        string  `yaml:"id"`
	Role      string  `yaml:"role"`
	Status    string  `yaml:"status"`
	FirstName string  `yaml:"firstName"`
	LastName  string  `yaml:"lastName"`
	Email     string  `yaml:"email"`
	Phone     *string `yaml:"phone,omitempty"`

	Membership *Membership `yaml:"membership,omitempty"`
}

type Membership struct {
	Type       string `yaml:"type"`
	Cadence    string `yaml:"paymentCadence"`
	FeeMinor   int64  `yaml:"feeMinor"`
	Currency   string `yaml:"currency"`
	Status     string `yaml:"status"`
	StartDate  string `yaml:"startDate"`
	ExpiryDate string `yaml:"expiryDate,omitempty"`
}

type Position struct {
	ProfileID string `yaml:"profileId"`
	Title     string `yaml:"title"`
	Level     string `yaml:"level"`
	StartDate string `yaml:"startDate,omitempty"`
}

type Template struct {
	Name    string  `yaml:"name"`
	Channel string  `yaml:"channel"`
	Subject *string `yaml:"subject,omitempty"`
	Content string  `yaml:"content"`
}

type Repos struct {
	Profiles    profilerepo.Repository
	Memberships membershiprepo.Repository
	Board       boardrepo.Repository
	Templates   templaterepo.Repository
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// LoadFile reads and applies the fixture at path.
func LoadFile(ctx context.Context, path string, repos Repos, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return err
	}
	return Apply(ctx, f, repos, now)
}

// Apply writes every fixture row. Profiles that already exist are skipped.
func Apply(ctx context.Context, f File, repos Repos, now time.Time) error {
	for i, sp := range f.Profiles {
		p, err := sp.toDomain(now)
		if err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if err := repos.Profiles.Create(ctx, p); err != nil {
			if errors.Is(err, profilerepo.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if sp.Membership == nil || repos.Memberships == nil {
			continue
		}
		m, err := sp.Membership.toDomain(p.ID, now)
		if err != nil {
			return fmt.Errorf("profiles[%d].membership: %w", i, err)
		}
		if m.MemberNumber, err = repos.Memberships.NextMemberNumber(ctx); err != nil {
			return err
		}
		if err := repos.Memberships.Create(ctx, m); err != nil {
			return fmt.Errorf("profiles[%d].membership: %w", i, err)
		}
	}

	for i, sb := range f.Board {
		if repos.Board == nil {
			break
		}
		bp := domain.BoardPosition{
			ID:        domain.BoardPositionID(uuid.NewString()),
			ProfileID: domain.IdentityID(sb.ProfileID),
			Title:     domain.NormalizeHumanName(sb.Title),
			Level:     domain.PositionLevel(sb.Level),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if !bp.Level.Valid() {
			return fmt.Errorf("boardPositions[%d]: invalid level %q", i, sb.Level)
		}
		if sb.StartDate != "" {
			d, err := time.Parse(dateLayout, sb.StartDate)
			if err != nil {
				return fmt.Errorf("boardPositions[%d]: %w", i, err)
			}
			bp.StartDate = &d
		}
		if err := repos.Board.Create(ctx, bp); err != nil {
			return fmt.Errorf("boardPositions[%d]: %w", i, err)
		}
	}

	for i, st := range f.Templates {
		if repos.Templates == nil {
			break
		}
		ch := domain.Channel(st.Channel)
		if problems := domain.ValidateTemplate(ch, st.Subject, st.Content, nil); problems != nil {
			return fmt.Errorf("templates[%d]: %v", i, problems)
		}
		vars, _ := domain.Placeholders(st.Content)
		if st.Subject != nil {
			sv, _ := domain.Placeholders(*st.Subject)
			vars = mergeNames(vars, sv)
		}
		t := domain.Template{
			ID:        domain.TemplateID(uuid.NewString()),
			Name:      st.Name,
			Channel:   ch,
			Subject:   st.Subject,
			Content:   st.Content,
			Variables: vars,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repos.Templates.Create(ctx, t); err != nil && !errors.Is(err, templaterepo.ErrNameTaken) {
			return fmt.Errorf("templates[%d]: %w", i, err)
		}
	}
	return nil
}

func (sp Profile) toDomain(now time.Time) (domain.Profile, error) {
	if sp.ID == "" {
		return domain.Profile{}, errors.New("id is required")
	}
	role := authz.Role(sp.Role)
	if sp.Role == "" {
		role = domain.DefaultProfileRole
	}
	if !role.Valid() {
		return domain.Profile{}, fmt.Errorf("invalid role %q", sp.Role)
	}
	status := domain.ProfileStatus(sp.Status)
	if sp.Status == "" {
		status = domain.ProfileActive
	}
	if !status.Valid() {
		return domain.Profile{}, fmt.Errorf("invalid status %q", sp.Status)
	}
	p := domain.Profile{
		ID:          domain.IdentityID(sp.ID),
		Role:        role,
		Status:      status,
		FirstName:   domain.NormalizeHumanName(sp.FirstName),
		LastName:    domain.NormalizeHumanName(sp.LastName),
		Email:       sp.Email,
		Preferences: domain.Preferences{Language: "en", EmailOptIn: true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sp.Phone != nil {
		phone, err := domain.NormalizePhone(*sp.Phone)
		if err != nil {
			return domain.Profile{}, err
		}
		p.Phone = &phone
		p.Preferences.WhatsAppOptIn = true
	}
	return p, nil
}

func (sm Membership) toDomain(profileID domain.IdentityID, now time.Time) (domain.Membership, error) {
	start, err := time.Parse(dateLayout, sm.StartDate)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("startDate: %w", err)
	}
	m := domain.Membership{
		ID:        domain.MembershipID(uuid.NewString()),
		ProfileID: profileID,
		Type:      domain.MembershipType(sm.Type),
		Cadence:   domain.PaymentCadence(sm.Cadence),
		Fee:       domain.Money{AmountMinor: sm.FeeMinor, Currency: sm.Currency},
		Status:    domain.MembershipStatus(sm.Status),
		StartDate: start,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !m.Type.Valid() || !m.Cadence.Valid() || !m.Status.Valid() {
		return domain.Membership{}, errors.New("invalid membership type, cadence or status")
	}
	if m.Fee.Currency == "" {
		m.Fee.Currency = "USD"
	}
	m.ExpiryDate = m.Cadence.Advance(start)
	if sm.ExpiryDate != "" {
		if m.ExpiryDate, err = time.Parse(dateLayout, sm.ExpiryDate); err != nil {
			return domain.Membership{}, fmt.Errorf("expiryDate: %w", err)
		}
	}
	if err := domain.ValidateWindow(m.StartDate, m.ExpiryDate); err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

func mergeNames(a, b []string) []string {
	seen := map[string]bool{}
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		if !seen[n] {
			seen[n] = true
			a = append(a, n)
		}
	}
	return a
}
