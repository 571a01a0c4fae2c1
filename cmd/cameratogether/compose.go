package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/config"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/service"
)

func composeCommand() *cobra.Command {
	var (
		templateID string
		out        string
		size       int
		guide      int
		preview    bool
		list       bool
	)
	cmd := &cobra.Command{
		Use:   "compose [image...]",
		Short: "Render a collage from local image files",
		Long: "Render a collage from one image per template frame. With --guide or\n" +
			"--preview the command draws the frame guide or template preview instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			logger := commonRun(cfg)
			ctx := cmd.Context()

			templates, err := service.NewTemplateService(cfg.Collage.Templates)
			if err != nil {
				return fmt.Errorf("failed to load templates: %w", err)
			}
			if list {
				for _, tpl := range templates.List(ctx) {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d photos\n", tpl.Key(), tpl.PhotoCount)
				}
				return nil
			}
			if size <= 0 {
				size = cfg.Collage.Size
			}

			tpl, err := resolveTemplate(ctx, templates, templateID, len(args))
			if err != nil {
				return err
			}

			var img image.Image
			switch {
			case preview:
				img, err = collage.Preview(tpl, size)
			case guide >= 0:
				img, err = collage.FrameGuide(tpl, guide, size, size)
			default:
				images := make([]image.Image, len(args))
				for i, path := range args {
					if images[i], err = loadImage(path); err != nil {
						return err
					}
				}
				img, err = collage.New(size).Compose(tpl, images)
			}
			if err != nil {
				return err
			}

			if err := writeImage(out, img); err != nil {
				return err
			}
			logger.Info("Image written", "path", out, "template_id", tpl.Key(), "size", size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "template id; defaults to the first template sized for the images")
	cmd.Flags().StringVarP(&out, "out", "o", "collage.jpg", "output file, .jpg or .png")
	cmd.Flags().IntVar(&size, "size", 0, "canvas edge length in pixels, overrides collage.size")
	cmd.Flags().IntVar(&guide, "guide", -1, "draw the viewfinder guide for this frame index")
	cmd.Flags().BoolVar(&preview, "preview", false, "draw the template outline preview")
	cmd.Flags().BoolVar(&list, "list", false, "list the template catalogue")
	return cmd
}

func resolveTemplate(ctx context.Context, templates *service.TemplateService, id string, photos int) (*models.Template, error) {
	if id != "" {
		return templates.Get(ctx, id)
	}
	if photos == 0 {
		return nil, fmt.Errorf("--template is required without images")
	}
	candidates, err := templates.ByPhotoCount(ctx, photos)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no template for %d photos", photos)
	}
	return &candidates[0], nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	img, err := collage.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// writeImage encodes img in the format named by the file extension.
func writeImage(path string, img image.Image) error {
	format, err := collage.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := collage.Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
