package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"testing"

	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/models"
)

// countdownGroup returns a two member group counting down with 2-split.
func countdownGroup(t *testing.T, env *testEnv) *models.Group {
	t.Helper()
	g := readyGroup(t, env, "U2")
	g, err := env.groups.StartCountdown(context.Background(), g.ID, "owner", "2-split")
	if err != nil {
		t.Fatalf("StartCountdown failed: %v", err)
	}
	return g
}

func TestUploadPhoto(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	g := countdownGroup(t, env)
	red := pngBytes(t, color.RGBA{R: 255, A: 255})

	photo, err := env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 0, Data: red})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if photo.ContentType != "image/png" || photo.Size != int64(len(red)) {
		t.Errorf("unexpected photo metadata: %+v", photo)
	}

	got, err := env.groups.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Status != models.StatusPhotoTaking {
		t.Errorf("status: expected photo_taking after first upload, got %s", got.Status)
	}

	data, _, err := env.blobs.Get(ctx, photo.ObjectKey)
	if err != nil {
		t.Fatalf("blob Get failed: %v", err)
	}
	if !bytes.Equal(data, red) {
		t.Error("stored bytes differ from upload")
	}

	t.Run("replace frame", func(t *testing.T) {
		again, err := env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 0, Data: red})
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		photos, err := env.photos.ListPhotos(ctx, g.ID)
		if err != nil {
			t.Fatalf("ListPhotos failed: %v", err)
		}
		if len(photos) != 1 || photos[0].ID != again.ID {
			t.Errorf("expected only the replacement photo, got %+v", photos)
		}
		if _, _, err := env.blobs.Get(ctx, photo.ObjectKey); err == nil {
			t.Error("expected replaced object to be removed")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		cases := []struct {
			name string
			p    UploadParams
			want Code
		}{
			{"not an image", UploadParams{GroupID: g.ID, UserID: "owner", Data: []byte("hello")}, CodeInvalidArgument},
			{"empty", UploadParams{GroupID: g.ID, UserID: "owner"}, CodeInvalidArgument},
			{"frame out of range", UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 2, Data: red}, CodeInvalidArgument},
			{"negative frame", UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: -1, Data: red}, CodeInvalidArgument},
			{"stranger", UploadParams{GroupID: g.ID, UserID: "stranger", Data: red}, CodePermissionDenied},
			{"missing group", UploadParams{GroupID: "nope", UserID: "owner", Data: red}, CodeNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := env.photos.Upload(ctx, tc.p)
				expectCode(t, err, tc.want)
			})
		}
	})
}

func TestUploadPhoto_TooLarge(t *testing.T) {
	env := setupTestEnv(t)
	env.photos.maxBytes = 16
	g := countdownGroup(t, env)

	_, err := env.photos.Upload(context.Background(), UploadParams{GroupID: g.ID, UserID: "owner", Data: pngBytes(t, color.White)})
	expectCode(t, err, CodeInvalidArgument)
	if !errors.Is(err, ErrPhotoTooLarge) {
		t.Errorf("expected ErrPhotoTooLarge, got %v", err)
	}
}

func TestUploadPhoto_FrameOwnership(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	g := countdownGroup(t, env)

	mine, err := env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 0, Data: pngBytes(t, color.White)})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	_, err = env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "U2", FrameIndex: 0, Data: pngBytes(t, color.Black)})
	expectCode(t, err, CodePermissionDenied)
	if !errors.Is(err, ErrFrameNotOwned) {
		t.Errorf("expected ErrFrameNotOwned, got %v", err)
	}

	photos, err := env.photos.ListPhotos(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != mine.ID || photos[0].UserID != "owner" {
		t.Errorf("expected frame 0 to keep the owner's photo, got %+v", photos)
	}

	_, err = env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 1, Data: pngBytes(t, color.White)})
	expectCode(t, err, CodePermissionDenied)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a grey image of
// the given size. It is enough for image.DecodeConfig.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth, colour type 0 (grey)

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUploadPhoto_TooManyPixels(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		env := setupTestEnv(t)
		g := countdownGroup(t, env)

		_, err := env.photos.Upload(context.Background(), UploadParams{GroupID: g.ID, UserID: "owner", Data: pngHeader(16000, 16000)})
		expectCode(t, err, CodeInvalidArgument)
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	})

	t.Run("configured limit", func(t *testing.T) {
		env := setupTestEnv(t)
		WithMaxPhotoPixels(32)(env.photos)
		g := countdownGroup(t, env)

		_, err := env.photos.Upload(context.Background(), UploadParams{GroupID: g.ID, UserID: "owner", Data: pngBytes(t, color.White)})
		expectCode(t, err, CodeInvalidArgument)
	})
}

func TestSniffFormat(t *testing.T) {
	if _, err := sniffFormat(pngHeader(16000, 16000), DefaultMaxPhotoPixels); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage for 256 MP, got %v", err)
	}
	format, err := sniffFormat(pngHeader(4000, 3000), DefaultMaxPhotoPixels)
	if err != nil || format != collage.FormatPNG {
		t.Errorf("expected png for 12 MP, got %q (%v)", format, err)
	}
}

func TestUploadPhoto_WrongState(t *testing.T) {
	env := setupTestEnv(t)
	g := readyGroup(t, env, "U2")

	_, err := env.photos.Upload(context.Background(), UploadParams{GroupID: g.ID, UserID: "owner", Data: pngBytes(t, color.White)})
	expectCode(t, err, CodeFailedPrecondition)
}

func TestComposeReady(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	g := countdownGroup(t, env)

	if _, err := env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "owner", FrameIndex: 0, Data: pngBytes(t, color.RGBA{R: 255, A: 255})}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	n, err := env.photos.ComposeReady(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no collage with a frame missing, got %d (%v)", n, err)
	}
	if _, _, err := env.photos.Collage(ctx, g.ID); CodeOf(err) != CodeNotFound {
		t.Errorf("expected collage not found yet, got %v", err)
	}

	if _, err := env.photos.Upload(ctx, UploadParams{GroupID: g.ID, UserID: "U2", FrameIndex: 1, Data: pngBytes(t, color.RGBA{B: 255, A: 255})}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	n, err = env.photos.ComposeReady(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 collage, got %d (%v)", n, err)
	}

	got, err := env.groups.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status: expected completed, got %s", got.Status)
	}

	data, contentType, err := env.photos.Collage(ctx, g.ID)
	if err != nil {
		t.Fatalf("Collage failed: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type: expected image/jpeg, got %s", contentType)
	}
	img, err := collage.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("collage width: expected 64, got %d", img.Bounds().Dx())
	}
	r, _, b, _ := img.At(16, 32).RGBA()
	if r>>8 < 200 || b>>8 > 60 {
		t.Errorf("expected left frame to be red, got r=%d b=%d", r>>8, b>>8)
	}
}
