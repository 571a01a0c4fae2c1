package groupapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/cameratogether/internal/models"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Client talks to the Group API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client, which sets no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateGroup creates a group owned by in.OwnerUserID.
func (c *Client) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	req := CreateGroupRequest{
		OwnerUserID: in.OwnerUserID,
		Name:        in.Name,
		GroupType:   string(in.Kind),
	}
	if in.ExpiresAt != nil {
		req.ExpiresAt = FormatTimestamp(*in.ExpiresAt)
	}
	var out Group
	if err := c.doJSON(ctx, "create group", http.MethodPost, "/groups", nil, req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return decodeGroup("create group", out)
}

// ListGroups lists the groups owned by ownerUserID.
func (c *Client) ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error) {
	q := url.Values{}
	if ownerUserID != "" {
		q.Set("owner_user_id", ownerUserID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out GroupList
	if err := c.doJSON(ctx, "list groups", http.MethodGet, "/groups", q, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(out.Groups))
	for _, g := range out.Groups {
		m, err := decodeGroup("list groups", g)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *m)
	}
	return groups, nil
}

// GetGroup fetches one group.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var out Group
	if err := c.doJSON(ctx, "get group", http.MethodGet, "/groups/"+url.PathEscape(groupID), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeGroup("get group", out)
}

// GetGroupByInvitation fetches the group an invitation token points at.
func (c *Client) GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error) {
	q := url.Values{"invitation_token": {token}}
	var out Group
	if err := c.doJSON(ctx, "get group by invitation", http.MethodGet, "/groups/by-invitation", q, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeGroup("get group by invitation", out)
}

// JoinGroup adds userID to the group behind token. A 409 means the user is
// already a member.
func (c *Client) JoinGroup(ctx context.Context, token, userID string) (*models.Group, error) {
	var out Group
	if err := c.doJSON(ctx, "join group", http.MethodPost, "/groups/join/"+url.PathEscape(token), nil, UserRequest{UserID: userID}, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeGroup("join group", out)
}

// ListMembers returns the full member list of a group.
func (c *Client) ListMembers(ctx context.Context, groupID string) (models.Members, error) {
	var out MemberList
	if err := c.doJSON(ctx, "list members", http.MethodGet, groupPath(groupID, "members"), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	members := make(models.Members, 0, len(out.Members))
	for _, m := range out.Members {
		mm, err := m.Model()
		if err != nil {
			return nil, &DecodingError{Op: "list members", Err: err}
		}
		members = append(members, mm)
	}
	return members, nil
}

// FinalizeGroup freezes the member list.
func (c *Client) FinalizeGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	var out Group
	if err := c.doJSON(ctx, "finalize group", http.MethodPost, groupPath(groupID, "finalize"), nil, UserRequest{UserID: userID}, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeGroup("finalize group", out)
}

// StartCountdown asks the server to schedule the capture. The returned group
// carries the server-assigned capture time and template.
func (c *Client) StartCountdown(ctx context.Context, groupID, userID, templateID string) (*models.Group, error) {
	req := StartCountdownRequest{UserID: userID, TemplateID: templateID}
	var out Group
	if err := c.doJSON(ctx, "start countdown", http.MethodPost, groupPath(groupID, "start-countdown"), nil, req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeGroup("start countdown", out)
}

// MarkReady sets the caller's ready flag.
func (c *Client) MarkReady(ctx context.Context, groupID, userID string) error {
	return c.doJSON(ctx, "mark ready", http.MethodPost, groupPath(groupID, "ready"), nil, UserRequest{UserID: userID}, http.StatusOK, nil)
}

// LeaveGroup removes userID from the group.
func (c *Client) LeaveGroup(ctx context.Context, groupID, userID string) error {
	q := url.Values{"user_id": {userID}}
	return c.doJSON(ctx, "leave group", http.MethodDelete, groupPath(groupID, "leave"), q, nil, http.StatusOK, nil)
}

// DeleteGroup deletes the group. Only the owner may do this.
func (c *Client) DeleteGroup(ctx context.Context, groupID, userID string) error {
	q := url.Values{"user_id": {userID}}
	return c.doJSON(ctx, "delete group", http.MethodDelete, "/groups/"+url.PathEscape(groupID), q, nil, http.StatusOK, nil)
}

// UploadPhoto sends one captured photo as multipart/form-data with the
// fields user_id, frame_index and photo.
func (c *Client) UploadPhoto(ctx context.Context, in UploadPhotoInput) (*models.Photo, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("user_id", in.UserID); err != nil {
		return nil, fmt.Errorf("failed to write user_id: %w", err)
	}
	if err := mw.WriteField("frame_index", strconv.Itoa(in.FrameIndex)); err != nil {
		return nil, fmt.Errorf("failed to write frame_index: %w", err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename="frame-%d%s"`, in.FrameIndex, extension(contentType)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, fmt.Errorf("failed to write photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, groupPath(in.GroupID, "photos"), nil, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Photo
	if err := c.do(req, "upload photo", http.StatusCreated, &out); err != nil {
		return nil, err
	}
	p, err := out.Model()
	if err != nil {
		return nil, &DecodingError{Op: "upload photo", Err: err}
	}
	return &p, nil
}

// ListPhotos returns the photos uploaded so far.
func (c *Client) ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error) {
	var out PhotoList
	if err := c.doJSON(ctx, "list photos", http.MethodGet, groupPath(groupID, "photos"), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	photos := make([]models.Photo, 0, len(out.Photos))
	for _, p := range out.Photos {
		pm, err := p.Model()
		if err != nil {
			return nil, &DecodingError{Op: "list photos", Err: err}
		}
		photos = append(photos, pm)
	}
	return photos, nil
}

// GetCollage downloads the generated collage. It returns the image bytes and
// their content type.
func (c *Client) GetCollage(ctx context.Context, groupID string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, groupPath(groupID, "collage"), nil, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.send(req, "get collage")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", readHTTPError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &NetworkError{Op: "get collage", Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ListTemplates returns the whole catalogue.
func (c *Client) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var out TemplateList
	if err := c.doJSON(ctx, "list templates", http.MethodGet, "/template-data", nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return templateModels(out.Templates), nil
}

// TemplatesByPhotoCount returns the templates with exactly photoCount frames.
func (c *Client) TemplatesByPhotoCount(ctx context.Context, photoCount int) ([]models.Template, error) {
	q := url.Values{"photo_count": {strconv.Itoa(photoCount)}}
	var out TemplateList
	if err := c.doJSON(ctx, "filter templates", http.MethodGet, "/template-data/filter", q, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return templateModels(out.Templates), nil
}

// GetTemplate fetches one template by id.
func (c *Client) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var out Template
	if err := c.doJSON(ctx, "get template", http.MethodGet, "/template-data/"+url.PathEscape(id), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	t := out.Model()
	return &t, nil
}

// CreateUser registers a user with the given display name.
func (c *Client) CreateUser(ctx context.Context, displayName string) (*models.User, error) {
	var out User
	if err := c.doJSON(ctx, "create user", http.MethodPost, "/users", nil, CreateUserRequest{Name: displayName}, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return decodeUser("create user", out)
}

// GetUser fetches one user.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var out User
	if err := c.doJSON(ctx, "get user", http.MethodGet, "/users/"+url.PathEscape(userID), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return decodeUser("get user", out)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, want, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Group API request failed", "op", op, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.logger.Debug("Group API request",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) do(req *http.Request, op string, want int, out any) error {
	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return readHTTPError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodingError{Op: op, Err: err}
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

func decodeGroup(op string, g Group) (*models.Group, error) {
	m, err := g.Model()
	if err != nil {
		return nil, &DecodingError{Op: op, Err: err}
	}
	return m, nil
}

func decodeUser(op string, u User) (*models.User, error) {
	m, err := u.Model()
	if err != nil {
		return nil, &DecodingError{Op: op, Err: err}
	}
	return &m, nil
}

func templateModels(in []Template) []models.Template {
	out := make([]models.Template, len(in))
	for i, t := range in {
		out[i] = t.Model()
	}
	return out
}

func groupPath(groupID, action string) string {
	return "/groups/" + url.PathEscape(groupID) + "/" + action
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
