package models

import "fmt"

// User represents a registered identity.
//
// Sign-in happens against an external identity provider; this record only
// carries what the collage flow needs to show a member.
type User struct {
	// ID is the unique identifier for the user.
	ID string

	// DisplayName is shown on member cards.
	DisplayName string

	// CreatedAt is the Unix timestamp when the user was registered.
	CreatedAt int64
}

// FallbackName derives a display name for a user that never set one.
func FallbackName(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return fmt.Sprintf("User %s", userID)
}
