package groupapi

import (
	"fmt"
	"time"

	"github.com/mmynk/cameratogether/internal/models"
)

// Group is the JSON form of models.Group.
type Group struct {
	ID                   string  `json:"id"`
	OwnerUserID          string  `json:"owner_user_id"`
	Name                 string  `json:"name"`
	GroupType            string  `json:"group_type"`
	Status               string  `json:"status"`
	MaxMember            int     `json:"max_member"`
	CurrentMemberCount   int     `json:"current_member_count"`
	InvitationToken      string  `json:"invitation_token"`
	FinalizedAt          *string `json:"finalized_at,omitempty"`
	CountdownStartedAt   *string `json:"countdown_started_at,omitempty"`
	ScheduledCaptureTime *string `json:"scheduled_capture_time,omitempty"`
	TemplateID           *string `json:"template_id,omitempty"`
	ExpiresAt            *string `json:"expires_at,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// GroupList is the body of GET /groups.
type GroupList struct {
	Groups     []Group `json:"groups"`
	TotalCount int     `json:"total_count"`
}

// Member is the JSON form of models.Member.
type Member struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name,omitempty"`
	IsOwner     bool    `json:"is_owner"`
	ReadyStatus bool    `json:"ready_status"`
	ReadyAt     *string `json:"ready_at,omitempty"`
	JoinedAt    string  `json:"joined_at"`
}

// MemberList is the body of GET /groups/{id}/members.
type MemberList struct {
	Members []Member `json:"members"`
	Count   int      `json:"count"`
}

// Frame is one template frame on the wire.
type Frame struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Template is a collage template on the wire. The catalogue spells the view
// box key in camel case.
type Template struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	PhotoCount int     `json:"photo_count"`
	ViewBox    string  `json:"viewBox"`
	Frames     []Frame `json:"frames"`
}

// TemplateList is the body of the template catalogue reads.
type TemplateList struct {
	Templates  []Template `json:"templates"`
	Count      int        `json:"count"`
	PhotoCount int        `json:"photo_count,omitempty"`
}

// Photo is an uploaded photo on the wire.
type Photo struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	FrameIndex  int    `json:"frame_index"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	UploadedAt  string `json:"uploaded_at"`
}

// PhotoList is the body of GET /groups/{id}/photos.
type PhotoList struct {
	Photos []Photo `json:"photos"`
	Count  int     `json:"count"`
}

// User is the JSON form of models.User.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	CreatedAt   string `json:"created_at"`
}

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	Name        string `json:"name"`
	GroupType   string `json:"group_type"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// UserRequest carries the acting user for join, finalize and ready.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// StartCountdownRequest is the body of POST /groups/{id}/start-countdown.
type StartCountdownRequest struct {
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// ErrorBody is returned with every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageBody acknowledges operations that return no resource.
type MessageBody struct {
	Message string `json:"message"`
}

// ParseTimestamp accepts ISO-8601 timestamps with or without fractional
// seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse(time.RFC3339, s); err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
}

// FormatTimestamp writes whole-second UTC timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatPrecise keeps the fractional seconds. It is used for the capture
// time, which devices compare at sub-second granularity.
func formatPrecise(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optTime(t *time.Time, format func(time.Time) string) *string {
	if t == nil {
		return nil
	}
	s := format(*t)
	return &s
}

func parseOptTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FromGroup converts a domain group to its wire form.
func FromGroup(g *models.Group) Group {
	out := Group{
		ID:                   g.ID,
		OwnerUserID:          g.OwnerUserID,
		Name:                 g.Name,
		GroupType:            string(g.Kind),
		Status:               string(g.Status),
		MaxMember:            g.MaxMember,
		CurrentMemberCount:   g.CurrentMemberCount,
		InvitationToken:      g.InvitationToken,
		FinalizedAt:          optTime(g.FinalizedAt, FormatTimestamp),
		CountdownStartedAt:   optTime(g.CountdownStartedAt, FormatTimestamp),
		ScheduledCaptureTime: optTime(g.ScheduledCaptureTime, formatPrecise),
		ExpiresAt:            optTime(g.ExpiresAt, FormatTimestamp),
		CreatedAt:            FormatTimestamp(g.CreatedAt),
		UpdatedAt:            FormatTimestamp(g.UpdatedAt),
	}
	if g.TemplateID != "" {
		id := g.TemplateID
		out.TemplateID = &id
	}
	return out
}

// Model converts the wire form to a domain group. Unknown kind or status
// strings are rejected.
func (g Group) Model() (*models.Group, error) {
	kind, err := models.ParseGroupKind(g.GroupType)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseGroupStatus(g.Status)
	if err != nil {
		return nil, err
	}

	out := &models.Group{
		ID:                 g.ID,
		OwnerUserID:        g.OwnerUserID,
		Name:               g.Name,
		Kind:               kind,
		Status:             status,
		MaxMember:          g.MaxMember,
		CurrentMemberCount: g.CurrentMemberCount,
		InvitationToken:    g.InvitationToken,
	}
	if g.TemplateID != nil {
		out.TemplateID = *g.TemplateID
	}

	times := []struct {
		src *string
		dst **time.Time
	}{
		{g.FinalizedAt, &out.FinalizedAt},
		{g.CountdownStartedAt, &out.CountdownStartedAt},
		{g.ScheduledCaptureTime, &out.ScheduledCaptureTime},
		{g.ExpiresAt, &out.ExpiresAt},
	}
	for _, tt := range times {
		if *tt.dst, err = parseOptTime(tt.src); err != nil {
			return nil, err
		}
	}
	if out.CreatedAt, err = ParseTimestamp(g.CreatedAt); err != nil {
		return nil, err
	}
	if out.UpdatedAt, err = ParseTimestamp(g.UpdatedAt); err != nil {
		return nil, err
	}
	return out, nil
}

// FromMember converts a domain member to its wire form.
func FromMember(m *models.Member) Member {
	return Member{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		IsOwner:     m.IsOwner,
		ReadyStatus: m.Ready,
		ReadyAt:     optTime(m.ReadyAt, FormatTimestamp),
		JoinedAt:    FormatTimestamp(m.JoinedAt),
	}
}

// Model converts the wire form to a domain member.
func (m Member) Model() (models.Member, error) {
	out := models.Member{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		IsOwner:     m.IsOwner,
		Ready:       m.ReadyStatus,
	}
	var err error
	if out.ReadyAt, err = parseOptTime(m.ReadyAt); err != nil {
		return models.Member{}, err
	}
	if out.JoinedAt, err = ParseTimestamp(m.JoinedAt); err != nil {
		return models.Member{}, err
	}
	return out, nil
}

// FromTemplate converts a domain template to its wire form.
func FromTemplate(t *models.Template) Template {
	frames := make([]Frame, len(t.Frames))
	for i, f := range t.Frames {
		frames[i] = Frame{ID: f.ID, Path: f.Path}
	}
	return Template{ID: t.Key(), Name: t.Name, PhotoCount: t.PhotoCount, ViewBox: t.ViewBox, Frames: frames}
}

// Model converts the wire form to a domain template.
func (t Template) Model() models.Template {
	frames := make([]models.Frame, len(t.Frames))
	for i, f := range t.Frames {
		frames[i] = models.Frame{ID: f.ID, Path: f.Path}
	}
	return models.Template{ID: t.ID, Name: t.Name, PhotoCount: t.PhotoCount, ViewBox: t.ViewBox, Frames: frames}
}

// FromPhoto converts a domain photo to its wire form.
func FromPhoto(p *models.Photo) Photo {
	return Photo{
		ID:          p.ID,
		GroupID:     p.GroupID,
		UserID:      p.UserID,
		FrameIndex:  p.FrameIndex,
		ContentType: p.ContentType,
		Size:        p.Size,
		UploadedAt:  FormatTimestamp(p.UploadedAt),
	}
}

// Model converts the wire form to a domain photo.
func (p Photo) Model() (models.Photo, error) {
	at, err := ParseTimestamp(p.UploadedAt)
	if err != nil {
		return models.Photo{}, err
	}
	return models.Photo{
		ID:          p.ID,
		GroupID:     p.GroupID,
		UserID:      p.UserID,
		FrameIndex:  p.FrameIndex,
		ContentType: p.ContentType,
		Size:        p.Size,
		UploadedAt:  at,
	}, nil
}

// FromUser converts a domain user to its wire form.
func FromUser(u *models.User) User {
	return User{ID: u.ID, DisplayName: u.DisplayName, CreatedAt: FormatTimestamp(time.Unix(u.CreatedAt, 0))}
}

// Model converts the wire form to a domain user.
func (u User) Model() (models.User, error) {
	at, err := ParseTimestamp(u.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: u.ID, DisplayName: u.DisplayName, CreatedAt: at.Unix()}, nil
}
