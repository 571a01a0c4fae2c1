package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/cameratogether/internal/config"
	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/session"
)

type shootOptions struct {
	userID    string
	name      string
	create    string
	kind      string
	join      string
	members   int
	template  string
	photo     string
	out       string
	serverURL string
}

func shootCommand() *cobra.Command {
	var opts shootOptions
	cmd := &cobra.Command{
		Use:   "shoot",
		Short: "Take part in a group photo session from this device",
		Long: "Create a group with --create or join one with --join, wait for the\n" +
			"members, count down to the shared capture time and upload --photo as\n" +
			"this device's frame. The owner then downloads the collage to --out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			logger := commonRun(cfg)
			if opts.serverURL != "" {
				cfg.Client.BaseURL = opts.serverURL
			}
			return shoot(cmd.Context(), cmd.OutOrStdout(), cfg.Client, opts, logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.userID, "user", "", "existing user id; a user named --name is registered when empty")
	f.StringVar(&opts.name, "name", "", "display name for a new user")
	f.StringVar(&opts.create, "create", "", "create a group with this name")
	f.StringVar(&opts.kind, "kind", string(models.KindGlobalTemporary), "group type: global_temporary or permanent")
	f.StringVar(&opts.join, "join", "", "join the group behind this invitation token")
	f.IntVar(&opts.members, "members", 2, "owner only: finalize once this many members joined")
	f.StringVar(&opts.template, "template", "", "owner only: template id")
	f.StringVar(&opts.photo, "photo", "", "image file used as this device's capture")
	f.StringVarP(&opts.out, "out", "o", "", "owner only: where to write the collage")
	f.StringVar(&opts.serverURL, "server", "", "API base URL, overrides client.baseURL")
	cmd.MarkFlagsMutuallyExclusive("create", "join")
	cmd.MarkFlagsOneRequired("create", "join")
	_ = cmd.MarkFlagRequired("photo")
	return cmd
}

func shoot(ctx context.Context, w io.Writer, cfg config.ClientConfig, opts shootOptions, logger *slog.Logger) error {
	img, err := loadImage(opts.photo)
	if err != nil {
		return err
	}

	client := groupapi.New(cfg.BaseURL,
		groupapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		groupapi.WithLogger(logger),
	)

	userID := opts.userID
	if userID == "" {
		if opts.name == "" {
			return errors.New("--user or --name is required")
		}
		u, err := client.CreateUser(ctx, opts.name)
		if err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		userID = u.ID
		fmt.Fprintf(w, "Registered as %s (%s)\n", u.DisplayName, u.ID)
	}

	coord := session.New(client, client, logger, session.Options{
		CountdownDelay: cfg.LocalCountdown,
		PollInterval:   cfg.PollInterval,
	})

	var snap *session.Snapshot
	if opts.create != "" {
		kind, err := models.ParseGroupKind(opts.kind)
		if err != nil {
			return err
		}
		if kind.IsLocal() {
			return errors.New("shoot drives networked groups; use compose for a single device")
		}
		if snap, err = coord.CreateGroup(ctx, userID, opts.create, kind); err != nil {
			return err
		}
		fmt.Fprintf(w, "Group %q created. Invitation token:\n%s\n", snap.Group.Name, snap.Group.InvitationToken)
	} else {
		if snap, err = coord.JoinGroup(ctx, opts.join, userID); err != nil {
			return err
		}
		fmt.Fprintf(w, "Joined %q owned by %s\n", snap.Group.Name, ownerName(snap))
	}
	groupID := snap.Group.ID
	owner := snap.Group.IsOwner(userID)

	stopPolling := coord.StartPolling(ctx)
	defer stopPolling()

	wait := func(what string, cond func(*session.Snapshot) bool) (*session.Snapshot, error) {
		return waitFor(ctx, coord, cfg.PollInterval, what, cond)
	}

	if owner {
		fmt.Fprintf(w, "Waiting for %d members\n", opts.members)
		if _, err := wait("members", func(s *session.Snapshot) bool {
			return len(s.Members) >= opts.members
		}); err != nil {
			return err
		}
		if err := coord.FinalizeMembers(ctx, groupID, userID); err != nil {
			return err
		}
	} else {
		if _, err := wait("finalize", func(s *session.Snapshot) bool {
			return s.Group.Status != models.StatusRecruiting
		}); err != nil {
			return err
		}
	}

	if err := coord.MarkReady(ctx, groupID, userID); err != nil {
		return err
	}
	fmt.Fprintln(w, "Ready")

	if owner {
		if _, err := wait("ready", (*session.Snapshot).AllReady); err != nil {
			return err
		}
		if err := coord.StartCountdown(ctx, groupID, userID, opts.template); err != nil {
			return err
		}
	}
	snap, err = wait("countdown", func(s *session.Snapshot) bool {
		return s.Group.Status == models.StatusCountdown || s.Group.Status == models.StatusPhotoTaking
	})
	if err != nil {
		return err
	}

	countdown, err := coord.Countdown()
	if err != nil {
		return err
	}
	if err := countdown.Run(ctx, func(seconds int) {
		fmt.Fprintf(w, "%d\n", seconds)
	}, func() {
		if err := coord.BeginPhotoTaking(); err != nil {
			logger.Warn("Failed to begin photo taking", "error", err)
		}
	}); err != nil {
		return err
	}

	frame := snap.Members.FrameOf(userID)
	if frame < 0 {
		return fmt.Errorf("%s is not a member of group %s", userID, groupID)
	}
	if _, err := coord.UploadPhoto(ctx, groupID, userID, frame, img); err != nil {
		return err
	}
	fmt.Fprintf(w, "Photo uploaded for frame %d\n", frame)

	if !owner || opts.out == "" {
		return nil
	}
	data, err := waitForCollage(ctx, client, groupID, cfg.PollInterval)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write collage: %w", err)
	}
	fmt.Fprintf(w, "Collage written to %s\n", opts.out)
	return nil
}

// waitFor blocks until cond holds for the coordinator's snapshot. The
// snapshot itself is kept fresh by the poller.
func waitFor(ctx context.Context, coord *session.Coordinator, interval time.Duration, what string, cond func(*session.Snapshot) bool) (*session.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s := coord.Current()
		if s == nil {
			return nil, fmt.Errorf("waiting for %s: %w", what, session.ErrNoGroup)
		}
		if s.Group.Status == models.StatusExpired {
			return nil, fmt.Errorf("waiting for %s: %w", what, models.ErrGroupExpired)
		}
		if cond(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func waitForCollage(ctx context.Context, client *groupapi.Client, groupID string, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		data, _, err := client.GetCollage(ctx, groupID)
		if err == nil {
			return data, nil
		}
		if !groupapi.IsNotFound(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func ownerName(s *session.Snapshot) string {
	for _, m := range s.Members {
		if m.IsOwner {
			return m.DisplayName
		}
	}
	return s.Group.OwnerUserID
}
