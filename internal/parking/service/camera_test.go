package service_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/service"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

func writePlaceholder(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "placeholder.jpg")
	if err := os.WriteFile(path, []byte("placeholder-bytes"), 0o644); err != nil {
		t.Fatalf("write placeholder: %v", err)
	}
	return path
}

func TestCameraCaptureSuccess(t *testing.T) {
	frame := []byte("jpeg-frame-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(frame)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cam := service.NewCamera(service.CameraConfig{
		SnapshotDir:     dir,
		PlaceholderPath: writePlaceholder(t, dir),
		EntryURL:        srv.URL,
	}, slog.Default())

	ref := cam.Capture(context.Background(), "CARD-1", types.DirectionIn)
	if ref == service.PlaceholderRef {
		t.Fatal("capture fell back despite a healthy camera")
	}
	if !strings.HasPrefix(ref, "CARD-1_") || !strings.HasSuffix(ref, ".jpg") {
		t.Fatalf("snapshot ref = %q", ref)
	}

	got, err := os.ReadFile(filepath.Join(dir, ref))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(got) != string(frame) {
		t.Fatalf("snapshot content = %q, want camera frame", got)
	}
}

func TestCameraCaptureFallsBackWhenOffline(t *testing.T) {
	dir := t.TempDir()
	cam := service.NewCamera(service.CameraConfig{
		SnapshotDir:     dir,
		PlaceholderPath: writePlaceholder(t, dir),
		// Port 1 refuses connections immediately.
		ExitURL: "http://127.0.0.1:1/still",
	}, slog.Default())

	ref := cam.Capture(context.Background(), "CARD-2", types.DirectionOut)
	if !strings.Contains(ref, "_offline") {
		t.Fatalf("offline capture ref = %q, want _offline placeholder copy", ref)
	}

	got, err := os.ReadFile(filepath.Join(dir, ref))
	if err != nil {
		t.Fatalf("read fallback snapshot: %v", err)
	}
	if string(got) != "placeholder-bytes" {
		t.Fatalf("fallback content = %q, want placeholder", got)
	}
}

func TestCameraTestMode(t *testing.T) {
	dir := t.TempDir()
	cam := service.NewCamera(service.CameraConfig{
		SnapshotDir:     dir,
		PlaceholderPath: writePlaceholder(t, dir),
		TestMode:        true,
	}, slog.Default())

	ref := cam.Capture(context.Background(), "CARD-3", types.DirectionIn)
	if !strings.Contains(ref, "_offline") {
		t.Fatalf("test mode ref = %q, want placeholder copy", ref)
	}
}

func TestCameraDegradesToSharedPlaceholder(t *testing.T) {
	// No placeholder file at all: the shared reference is the last resort.
	cam := service.NewCamera(service.CameraConfig{
		SnapshotDir:     t.TempDir(),
		PlaceholderPath: "/nonexistent/placeholder.jpg",
		TestMode:        true,
	}, slog.Default())

	if ref := cam.Capture(context.Background(), "CARD-4", types.DirectionIn); ref != service.PlaceholderRef {
		t.Fatalf("ref = %q, want %q", ref, service.PlaceholderRef)
	}
}
