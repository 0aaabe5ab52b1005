package identity

import "github.com/chapter-connect/membership-api/internal/domain"

// State is the identity currently signed in to a session. Zero value means anonymous.
type State struct {
	ID            domain.IdentityID
	Authenticated bool
}

// Provider exposes the current session identity and notifies on sign-in and sign-out.
type Provider interface {
	Current() State
	// Subscribe registers fn for identity changes and returns a function that removes it.
	Subscribe(fn func(State)) (unsubscribe func())
}
