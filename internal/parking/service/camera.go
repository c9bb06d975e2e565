package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tranbichdiep/smart-parking-management/internal/metrics"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

// PlaceholderRef is the snapshot reference reported when no image could
// be captured or stored. It always refers to the bundled placeholder.
const PlaceholderRef = "placeholder.jpg"

// maxSnapshotBytes caps a single still frame; lane cameras produce
// JPEGs well under 1 MiB.
const maxSnapshotBytes = 8 << 20

// Snapshotter captures a still image for one side of a gate handshake and
// returns a stable reference to it. Implementations never fail the
// caller: on any camera or storage problem they fall back to a
// placeholder reference, because the handshake must not stall when a
// camera is offline.
type Snapshotter interface {
	Capture(ctx context.Context, cardID string, dir types.Direction) string
}

type CameraConfig struct {
	// SnapshotDir is where captured frames are written.
	SnapshotDir string
	// PlaceholderPath is the source image copied on fallback.
	PlaceholderPath string
	// EntryURL and ExitURL are the still-image endpoints of the two lane
	// cameras.
	EntryURL string
	ExitURL  string
	// Timeout bounds one capture attempt. Defaults to 3s.
	Timeout time.Duration
	// TestMode skips the cameras entirely and always produces the
	// placeholder, for bench setups without hardware.
	TestMode bool
}

type Camera struct {
	cfg    CameraConfig
	client *http.Client
	logger *slog.Logger
}

func NewCamera(cfg CameraConfig, logger *slog.Logger) *Camera {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Camera{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Capture fetches one frame from the lane camera and stores it under a
// collision-free name. Failure is an explicit, logged outcome that
// degrades to the placeholder; it is never surfaced to the caller.
func (c *Camera) Capture(ctx context.Context, cardID string, dir types.Direction) string {
	if c.cfg.TestMode {
		return c.fallback(cardID, dir, nil)
	}

	frame, err := c.fetchFrame(ctx, dir)
	if err != nil {
		return c.fallback(cardID, dir, err)
	}

	name := snapshotName(cardID, dir, "")
	dest := filepath.Join(c.cfg.SnapshotDir, name)
	if err := os.WriteFile(dest, frame, 0o644); err != nil {
		return c.fallback(cardID, dir, err)
	}
	return name
}

func (c *Camera) fetchFrame(ctx context.Context, dir types.Direction) ([]byte, error) {
	url := c.cfg.EntryURL
	if dir == types.DirectionOut {
		url = c.cfg.ExitURL
	}
	if url == "" {
		return nil, fmt.Errorf("no camera configured for direction %q", dir)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera %s: status %d", url, resp.StatusCode)
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera %s: empty frame", url)
	}
	return frame, nil
}

// fallback copies the placeholder image into the snapshot directory under
// an "_offline" name so the record still gets a distinct reference. If
// even the copy fails, the shared placeholder reference is returned.
func (c *Camera) fallback(cardID string, dir types.Direction, cause error) string {
	if cause != nil {
		c.logger.Warn("snapshot capture failed, using placeholder",
			"card_id", cardID, "direction", string(dir), "error", cause)
	}
	metrics.CameraFallbacksTotal.Inc()

	src, err := os.ReadFile(c.cfg.PlaceholderPath)
	if err != nil {
		return PlaceholderRef
	}

	name := snapshotName(cardID, dir, "_offline")
	if err := os.WriteFile(filepath.Join(c.cfg.SnapshotDir, name), src, 0o644); err != nil {
		return PlaceholderRef
	}
	return name
}

func snapshotName(cardID string, dir types.Direction, suffix string) string {
	ts := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("%s_%s_%s_%s%s.jpg", cardID, ts, dir, uuid.NewString()[:8], suffix)
}
