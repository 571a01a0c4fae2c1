package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/blob"
	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/metrics"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

const (
	// DefaultMaxPhotoBytes caps a single upload.
	DefaultMaxPhotoBytes = 10 << 20

	// DefaultMaxPhotoPixels caps the decoded size of a single upload.
	DefaultMaxPhotoPixels = 40_000_000
)

// PhotoService accepts frame photos and renders the group collage.
type PhotoService struct {
	store      storage.Store
	blobs      blob.Store
	templates  *TemplateService
	compositor *collage.Compositor
	metrics    *metrics.Metrics
	maxBytes   int64
	maxPixels  int64
	now        func() time.Time
}

// PhotoOption configures a PhotoService.
type PhotoOption func(*PhotoService)

// WithMaxPhotoBytes sets the upload size limit.
func WithMaxPhotoBytes(n int64) PhotoOption {
	return func(s *PhotoService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMaxPhotoPixels sets the limit on width times height.
func WithMaxPhotoPixels(n int64) PhotoOption {
	return func(s *PhotoService) {
		if n > 0 {
			s.maxPixels = n
		}
	}
}

// WithPhotoMetrics records uploads and collage generation.
func WithPhotoMetrics(m *metrics.Metrics) PhotoOption {
	return func(s *PhotoService) { s.metrics = m }
}

// WithPhotoClock replaces time.Now.
func WithPhotoClock(now func() time.Time) PhotoOption {
	return func(s *PhotoService) { s.now = now }
}

// NewPhotoService creates a PhotoService. The compositor renders server
// side collages.
func NewPhotoService(store storage.Store, blobs blob.Store, templates *TemplateService, compositor *collage.Compositor, opts ...PhotoOption) *PhotoService {
	s := &PhotoService{
		store:      store,
		blobs:      blobs,
		templates:  templates,
		compositor: compositor,
		maxBytes:   DefaultMaxPhotoBytes,
		maxPixels:  DefaultMaxPhotoPixels,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadParams are the inputs of Upload.
type UploadParams struct {
	GroupID    string
	UserID     string
	FrameIndex int
	Data       []byte
}

// Upload stores the photo for one frame of a counting-down or
// photo-taking group. Each member owns the frame at their position in the
// member list. A second upload for a frame replaces the first.
func (s *PhotoService) Upload(ctx context.Context, p UploadParams) (*models.Photo, error) {
	slog.Info("UploadPhoto request received",
		"group_id", p.GroupID,
		"user_id", p.UserID,
		"frame_index", p.FrameIndex,
		"size", len(p.Data),
	)

	if p.UserID == "" {
		return nil, NewError(CodeInvalidArgument, ErrMissingUserID)
	}
	if int64(len(p.Data)) > s.maxBytes {
		return nil, NewError(CodeInvalidArgument, fmt.Errorf("%w: %d bytes, limit %d", ErrPhotoTooLarge, len(p.Data), s.maxBytes))
	}
	format, err := sniffFormat(p.Data, s.maxPixels)
	if err != nil {
		return nil, NewError(CodeInvalidArgument, err)
	}

	group, err := s.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, classify(err)
	}
	members, err := s.store.ListMembers(ctx, p.GroupID)
	if err != nil {
		return nil, classify(err)
	}
	owned := members.FrameOf(p.UserID)
	if owned < 0 {
		return nil, NewError(CodePermissionDenied, ErrNotMember)
	}
	if group.Status != models.StatusCountdown && group.Status != models.StatusPhotoTaking {
		return nil, classify(models.ErrGroupNotCapturing)
	}

	tpl, err := s.templates.Get(ctx, group.TemplateID)
	if err != nil {
		return nil, err
	}
	if p.FrameIndex < 0 || p.FrameIndex >= tpl.PhotoCount {
		return nil, NewError(CodeInvalidArgument, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidFrame, p.FrameIndex, tpl.PhotoCount))
	}
	if p.FrameIndex != owned {
		return nil, NewError(CodePermissionDenied, fmt.Errorf("%w: frame %d, yours is %d", ErrFrameNotOwned, p.FrameIndex, owned))
	}

	now := s.now()
	photo := &models.Photo{
		ID:          uuid.New().String(),
		GroupID:     p.GroupID,
		UserID:      p.UserID,
		FrameIndex:  p.FrameIndex,
		ContentType: format.ContentType(),
		Size:        int64(len(p.Data)),
		UploadedAt:  now,
	}
	photo.ObjectKey = blob.PhotoKey(p.GroupID, p.FrameIndex, photo.ID, "."+string(format))

	if err := s.blobs.Put(ctx, photo.ObjectKey, photo.ContentType, p.Data); err != nil {
		slog.Error("UploadPhoto failed", "group_id", p.GroupID, "error", err)
		return nil, classify(err)
	}
	replaced, err := s.store.SavePhoto(ctx, photo)
	if err != nil {
		slog.Error("UploadPhoto failed", "group_id", p.GroupID, "error", err)
		if rmErr := s.blobs.Remove(ctx, photo.ObjectKey); rmErr != nil {
			slog.Warn("Failed to remove orphaned photo", "key", photo.ObjectKey, "error", rmErr)
		}
		return nil, classify(err)
	}
	if replaced != nil {
		if err := s.blobs.Remove(ctx, replaced.ObjectKey); err != nil {
			slog.Warn("Failed to remove replaced photo", "key", replaced.ObjectKey, "error", err)
		}
	}

	// An upload proves the shutter fired.
	if group.Status == models.StatusCountdown {
		if err := group.BeginPhotoTaking(now); err == nil {
			if err := s.store.UpdateGroup(ctx, group, models.StatusCountdown); err == nil {
				s.metrics.Transition(string(group.Status))
			} else if !errors.Is(err, storage.ErrConflict) {
				slog.Warn("Failed to start photo taking", "group_id", group.ID, "error", err)
			}
		}
	}

	s.metrics.Upload(photo.Size)
	slog.Info("Photo uploaded", "group_id", p.GroupID, "frame_index", p.FrameIndex, "photo_id", photo.ID)
	return photo, nil
}

// ListPhotos returns the photos of a group ordered by frame.
func (s *PhotoService) ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, classify(err)
	}
	photos, err := s.store.ListPhotos(ctx, groupID)
	if err != nil {
		return nil, classify(err)
	}
	return photos, nil
}

// Collage returns the generated collage of a group.
func (s *PhotoService) Collage(ctx context.Context, groupID string) ([]byte, string, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, "", classify(err)
	}
	data, contentType, err := s.blobs.Get(ctx, blob.CollageKey(groupID))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, "", NewError(CodeNotFound, ErrCollageNotReady)
	}
	if err != nil {
		return nil, "", classify(err)
	}
	return data, contentType, nil
}

// ComposeReady renders the collage of every photo-taking group whose frames
// all have a photo, and completes those groups. It returns how many groups
// were completed.
func (s *PhotoService) ComposeReady(ctx context.Context) (int, error) {
	groups, err := s.store.ListGroupsByStatus(ctx, models.StatusPhotoTaking)
	if err != nil {
		return 0, fmt.Errorf("failed to list photo taking groups: %w", err)
	}

	done := 0
	var errs []error
	for i := range groups {
		ok, err := s.ComposeGroup(ctx, &groups[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", groups[i].ID, err))
			continue
		}
		if ok {
			done++
		}
	}
	return done, errors.Join(errs...)
}

// ComposeGroup renders one group's collage once every frame has a photo.
// It reports false without error while photos are still missing.
func (s *PhotoService) ComposeGroup(ctx context.Context, group *models.Group) (bool, error) {
	tpl, err := s.templates.Get(ctx, group.TemplateID)
	if err != nil {
		return false, err
	}
	photos, err := s.store.ListPhotos(ctx, group.ID)
	if err != nil {
		return false, err
	}

	byFrame := make([]*models.Photo, tpl.PhotoCount)
	for i := range photos {
		if f := photos[i].FrameIndex; f >= 0 && f < tpl.PhotoCount {
			byFrame[f] = &photos[i]
		}
	}
	for _, p := range byFrame {
		if p == nil {
			slog.Debug("Waiting for photos", "group_id", group.ID, "uploaded", len(photos), "frames", tpl.PhotoCount)
			return false, nil
		}
	}

	start := time.Now()
	images := make([]image.Image, tpl.PhotoCount)
	for i, p := range byFrame {
		data, _, err := s.blobs.Get(ctx, p.ObjectKey)
		if err != nil {
			s.metrics.Collage(false)
			return false, fmt.Errorf("failed to load frame %d: %w", i, err)
		}
		if images[i], err = collage.Decode(bytes.NewReader(data)); err != nil {
			s.metrics.Collage(false)
			return false, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	canvas, err := s.compositor.Compose(tpl, images)
	if err != nil {
		s.metrics.Collage(false)
		return false, err
	}
	var buf bytes.Buffer
	if err := collage.Encode(&buf, canvas, collage.FormatJPEG); err != nil {
		s.metrics.Collage(false)
		return false, fmt.Errorf("failed to encode collage: %w", err)
	}
	if err := s.blobs.Put(ctx, blob.CollageKey(group.ID), collage.FormatJPEG.ContentType(), buf.Bytes()); err != nil {
		s.metrics.Collage(false)
		return false, err
	}

	if err := group.Complete(s.now()); err != nil {
		return false, err
	}
	if err := s.store.UpdateGroup(ctx, group, models.StatusPhotoTaking); err != nil {
		return false, err
	}

	s.metrics.Collage(true)
	s.metrics.Transition(string(group.Status))
	slog.Info("Collage generated",
		"group_id", group.ID,
		"template_id", tpl.Key(),
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true, nil
}

// sniffFormat checks that data is a JPEG or PNG image of at most maxPixels
// pixels without decoding them.
func sniffFormat(data []byte, maxPixels int64) (collage.Format, error) {
	if len(data) == 0 {
		return "", ErrInvalidImage
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ErrInvalidImage
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}
	format, err := collage.ParseFormat(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return format, nil
}
