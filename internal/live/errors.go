package live

import "errors"

var (
	ErrNotFound          = errors.New("session not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBlocked           = errors.New("blocked by target user")
	ErrPrivacyRestricted = errors.New("broadcast restricted to host connections")
	ErrAlreadyKicked     = errors.New("viewer was kicked from this session")
	ErrStoreUnavailable  = errors.New("session store unavailable")
)

// UserMessage maps an error to the message shown to the end user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrBlocked):
		return "Cannot call this user"
	case errors.Is(err, ErrPrivacyRestricted):
		return "This is a family-only broadcast"
	case errors.Is(err, ErrAlreadyKicked):
		return "You were removed from this broadcast"
	case errors.Is(err, ErrNotFound):
		return "Session not found"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrStoreUnavailable):
		return "Temporarily unavailable, try again"
	}
	return "Unexpected error"
}
