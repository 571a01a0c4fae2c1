package models

import "time"

// Member is one participant of a group.
type Member struct {
	// ID is the membership row identifier (UUID format).
	ID string

	GroupID string
	UserID  string

	// DisplayName is resolved from the user record. It may be empty when the
	// user never registered a name.
	DisplayName string

	IsOwner bool

	// Ready flips to true once and never back within a session.
	Ready   bool
	ReadyAt *time.Time

	JoinedAt time.Time
}

// MarkReady sets the ready flag. It reports whether anything changed.
func (m *Member) MarkReady(now time.Time) bool {
	if m.Ready {
		return false
	}
	m.Ready = true
	m.ReadyAt = &now
	return true
}

// Members is the member list of one group.
type Members []Member

// Find returns the member for userID, or nil.
func (ms Members) Find(userID string) *Member {
	for i := range ms {
		if ms[i].UserID == userID {
			return &ms[i]
		}
	}
	return nil
}

// FrameOf returns the collage frame assigned to userID, or -1 when the
// user is not a member. Frames follow member order: the owner first, then
// join order.
func (ms Members) FrameOf(userID string) int {
	for i := range ms {
		if ms[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Contains reports whether userID is a member.
func (ms Members) Contains(userID string) bool {
	return ms.Find(userID) != nil
}

// AllReady reports whether there is at least one member and every member
// is ready.
func (ms Members) AllReady() bool {
	if len(ms) == 0 {
		return false
	}
	for _, m := range ms {
		if !m.Ready {
			return false
		}
	}
	return true
}

// ReadyCount returns how many members are ready.
func (ms Members) ReadyCount() int {
	n := 0
	for _, m := range ms {
		if m.Ready {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (ms Members) Clone() Members {
	if ms == nil {
		return nil
	}
	out := make(Members, len(ms))
	copy(out, ms)
	return out
}
