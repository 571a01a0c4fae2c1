package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/cameratogether/internal/auth"
	"github.com/mmynk/cameratogether/internal/blob"
	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/storage/sqlite"
)

var t0 = time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store     *sqlite.SQLiteStore
	blobs     *blob.FSStore
	clock     *testClock
	templates *TemplateService
	groups    *GroupService
	photos    *PhotoService
	users     *UserService
}

// setupTestEnv wires every service to a temp database and blob directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	templates, err := NewTemplateService("")
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	clock := &testClock{now: t0}
	invites := auth.NewInviteManager("test-secret", 0)
	invites.SetClock(clock.Now)

	return &testEnv{
		store:     store,
		blobs:     blobs,
		clock:     clock,
		templates: templates,
		groups: NewGroupService(store, invites, templates,
			WithClock(clock.Now),
			WithBlobs(blobs),
		),
		photos: NewPhotoService(store, blobs, templates, collage.New(64),
			WithPhotoClock(clock.Now),
		),
		users: NewUserService(store),
	}
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func expectCode(t *testing.T, err error, want Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}
