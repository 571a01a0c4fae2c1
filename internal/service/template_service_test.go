package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/cameratogether/internal/collage"
)

func TestTemplateCatalogue(t *testing.T) {
	s, err := NewTemplateService("")
	if err != nil {
		t.Fatalf("NewTemplateService failed: %v", err)
	}
	ctx := context.Background()

	all := s.List(ctx)
	if len(all) == 0 {
		t.Fatal("expected built-in templates")
	}
	for _, tpl := range all {
		if tpl.ID != tpl.Name {
			t.Errorf("template %q: expected id to default to name, got %q", tpl.Name, tpl.ID)
		}
	}

	two, err := s.ByPhotoCount(ctx, 2)
	if err != nil {
		t.Fatalf("ByPhotoCount failed: %v", err)
	}
	for _, tpl := range two {
		if tpl.PhotoCount != 2 {
			t.Errorf("template %q has %d photos", tpl.Name, tpl.PhotoCount)
		}
	}
	if len(two) < 2 {
		t.Errorf("expected at least 2 two-photo templates, got %d", len(two))
	}

	if _, err := s.ByPhotoCount(ctx, 0); CodeOf(err) != CodeInvalidArgument {
		t.Errorf("expected invalid argument, got %v", err)
	}

	tpl, err := s.Get(ctx, "2-split")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tpl.ViewBox != "0 0 1 1" {
		t.Errorf("viewBox: expected '0 0 1 1', got %q", tpl.ViewBox)
	}
	if _, err := s.Get(ctx, "missing"); CodeOf(err) != CodeNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLoadTemplates_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad command":   `[{"name":"x","photo_count":1,"viewBox":"0 0 1 1","frames":[{"id":1,"path":"M0 0C1 1 1 1 1 1Z"}]}]`,
		"frame count":   `[{"name":"x","photo_count":2,"viewBox":"0 0 1 1","frames":[{"id":1,"path":"M0 0H1V1Z"}]}]`,
		"bad view box":  `[{"name":"x","photo_count":1,"viewBox":"0 0 0 1","frames":[{"id":1,"path":"M0 0H1V1Z"}]}]`,
		"duplicate":     `[{"name":"x","photo_count":1,"viewBox":"0 0 1 1","frames":[{"id":1,"path":"M0 0H1V1Z"}]},{"name":"x","photo_count":1,"viewBox":"0 0 1 1","frames":[{"id":1,"path":"M0 0H1V1Z"}]}]`,
		"unknown field": `[{"name":"x","photos":1}]`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadTemplates([]byte(data)); err == nil {
				t.Error("expected catalogue to be rejected")
			}
		})
	}

	_, err := LoadTemplates([]byte(cases["bad command"]))
	if !errors.Is(err, collage.ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
}
