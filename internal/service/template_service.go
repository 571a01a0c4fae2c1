package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
)

//go:embed templates.json
var defaultCatalogue []byte

// layoutCheckSize is the canvas used to validate catalogue geometry.
const layoutCheckSize = 1000

// TemplateService serves the read-only collage template catalogue.
type TemplateService struct {
	templates []models.Template
	byID      map[string]int
}

// NewTemplateService loads the catalogue from path, or the built-in
// catalogue when path is empty.
func NewTemplateService(path string) (*TemplateService, error) {
	data := defaultCatalogue
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template catalogue: %w", err)
		}
	}
	return LoadTemplates(data)
}

// LoadTemplates parses a JSON catalogue. Every template must lay out
// cleanly: a template the compositor would reject never reaches a client.
func LoadTemplates(data []byte) (*TemplateService, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw []groupapi.Template
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse template catalogue: %w", err)
	}

	s := &TemplateService{byID: make(map[string]int, len(raw))}
	for _, r := range raw {
		tpl := r.Model()
		tpl.ID = tpl.Key()
		if _, err := collage.Layout(&tpl, layoutCheckSize); err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.ID, err)
		}
		if _, dup := s.byID[tpl.ID]; dup {
			return nil, fmt.Errorf("template %q defined twice", tpl.ID)
		}
		s.byID[tpl.ID] = len(s.templates)
		s.templates = append(s.templates, tpl)
	}

	slog.Debug("Template catalogue loaded", "count", len(s.templates))
	return s, nil
}

// List returns the whole catalogue in file order.
func (s *TemplateService) List(ctx context.Context) []models.Template {
	return append([]models.Template(nil), s.templates...)
}

// ByPhotoCount returns the templates with exactly photoCount frames.
func (s *TemplateService) ByPhotoCount(ctx context.Context, photoCount int) ([]models.Template, error) {
	if photoCount <= 0 {
		return nil, NewError(CodeInvalidArgument, fmt.Errorf("photo_count must be positive, got %d", photoCount))
	}
	var out []models.Template
	for _, t := range s.templates {
		if t.PhotoCount == photoCount {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get looks a template up by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, NewError(CodeNotFound, fmt.Errorf("%w: %q", ErrUnknownTemplate, id))
	}
	t := s.templates[i]
	return &t, nil
}
