package profilerepo

import "errors"

var (
	// ErrNotFound indicates the requested profile does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrAlreadyExists indicates a profile already exists for the identity.
	ErrAlreadyExists = errors.New("profile already exists")

	// ErrEmailTaken indicates another profile already uses the email address.
	ErrEmailTaken = errors.New("profile email already in use")
)
