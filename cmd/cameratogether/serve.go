package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/cameratogether/internal/auth"
	"github.com/mmynk/cameratogether/internal/blob"
	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/config"
	"github.com/mmynk/cameratogether/internal/httpapi"
	"github.com/mmynk/cameratogether/internal/metrics"
	"github.com/mmynk/cameratogether/internal/service"
	"github.com/mmynk/cameratogether/internal/storage/sqlite"
	"github.com/mmynk/cameratogether/internal/worker"
)

func serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Group API server and its scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := commonRun(cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	blobs, err := openBlobs(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("Blob storage initialized", "backend", cfg.Storage.Backend)

	templates, err := service.NewTemplateService(cfg.Collage.Templates)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	secret := cfg.Invite.Secret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
		logger.Warn("No invite secret configured, invitations will not survive a restart")
	}
	invites := auth.NewInviteManager(secret, cfg.Invite.TTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	groups := service.NewGroupService(store, invites, templates,
		service.WithCountdown(cfg.Session.Countdown),
		service.WithBlobs(blobs),
		service.WithMetrics(m),
	)
	photos := service.NewPhotoService(store, blobs, templates, collage.New(cfg.Collage.Size),
		service.WithMaxPhotoBytes(cfg.Server.MaxPhotoBytes),
		service.WithMaxPhotoPixels(cfg.Server.MaxPhotoPixels),
		service.WithPhotoMetrics(m),
	)

	api := httpapi.New(httpapi.Config{
		Groups:         groups,
		Photos:         photos,
		Templates:      templates,
		Users:          service.NewUserService(store),
		Health:         store.Ping,
		Gatherer:       reg,
		Metrics:        m,
		MaxUploadBytes: cfg.Server.MaxPhotoBytes + 1<<20,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(api.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := worker.New(groups, photos, groups, cfg.Worker.Interval, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	<-done
	return nil
}

func openBlobs(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	switch cfg.Backend {
	case config.StorageMinio:
		s, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := blob.NewFSStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob directory: %w", err)
		}
		return s, nil
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
