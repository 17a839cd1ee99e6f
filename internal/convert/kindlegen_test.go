package convert

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

func newTestConverter(t *testing.T, timeout time.Duration) *Converter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(filepath.Join(t.TempDir(), "bin"), timeout, logger)
}

// installFakeBinary writes a shell script in place of the real kindlegen.
func installFakeBinary(t *testing.T, c *Converter, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stubs require a POSIX shell")
	}
	if err := os.MkdirAll(c.binDir, 0755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	if err := os.WriteFile(c.BinaryPath(), []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
}

// buildArchive produces an archive of the platform's expected format
// containing a kindlegen entry.
func buildArchive(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if strings.HasSuffix(archiveURLs[runtime.GOOS], ".zip") {
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("kindlegen")
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zip close: %v", err)
		}
		return buf.Bytes()
	}

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "kindlegen",
		Typeflag: tar.TypeReg,
		Mode:     0755,
		Size:     int64(len(content)),
	}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestEnsureBinary_DownloadsOnce(t *testing.T) {
	c := newTestConverter(t, time.Minute)

	fetches := 0
	c.fetch = func(ctx context.Context, url string) ([]byte, error) {
		fetches++
		return buildArchive(t, "fake binary"), nil
	}

	if err := c.EnsureBinary(context.Background()); err != nil {
		t.Fatalf("EnsureBinary: %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetches: got %d, want 1", fetches)
	}

	data, err := os.ReadFile(c.BinaryPath())
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if string(data) != "fake binary" {
		t.Errorf("binary content: got %q", data)
	}

	// Second call is a no-op.
	if err := c.EnsureBinary(context.Background()); err != nil {
		t.Fatalf("EnsureBinary second call: %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetches after second call: got %d, want 1", fetches)
	}
}

func TestEnsureBinary_AlreadyInstalled(t *testing.T) {
	c := newTestConverter(t, time.Minute)
	installFakeBinary(t, c, "exit 0")

	c.fetch = func(ctx context.Context, url string) ([]byte, error) {
		t.Fatal("fetch called despite existing binary")
		return nil, nil
	}

	if err := c.EnsureBinary(context.Background()); err != nil {
		t.Fatalf("EnsureBinary: %v", err)
	}
}

func TestEnsureBinary_ConcurrentFirstUse(t *testing.T) {
	c := newTestConverter(t, time.Minute)

	archive := buildArchive(t, "fake binary")
	var fetches atomic.Int32
	c.fetch = func(ctx context.Context, url string) ([]byte, error) {
		fetches.Add(1)
		time.Sleep(10 * time.Millisecond)
		return archive, nil
	}

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- c.EnsureBinary(context.Background())
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("EnsureBinary: %v", err)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches: got %d, want 1", n)
	}
}

func TestConvert(t *testing.T) {
	c := newTestConverter(t, time.Minute)
	// kindlegen writes the -o name into the working directory; exit 0.
	installFakeBinary(t, c, `echo "mobi bytes" > "$4"`)

	dir := t.TempDir()
	in := filepath.Join(dir, "book.epub")
	out := filepath.Join(dir, "book.mobi")
	if err := os.WriteFile(in, []byte("epub"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	got, err := c.Convert(context.Background(), in, out)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got != out {
		t.Errorf("output path: got %q, want %q", got, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not created: %v", err)
	}
	// Input is never removed.
	if _, err := os.Stat(in); err != nil {
		t.Errorf("input removed: %v", err)
	}
}

func TestConvert_WarningsExitCode(t *testing.T) {
	c := newTestConverter(t, time.Minute)
	// Exit 1 means warnings; output created anyway.
	installFakeBinary(t, c, `echo "mobi bytes" > "$4"; exit 1`)

	dir := t.TempDir()
	out := filepath.Join(dir, "book.mobi")

	got, err := c.Convert(context.Background(), filepath.Join(dir, "book.epub"), out)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got != out {
		t.Errorf("output path: got %q, want %q", got, out)
	}
}

func TestConvert_FailureExitCode(t *testing.T) {
	c := newTestConverter(t, time.Minute)
	installFakeBinary(t, c, `echo "kindlegen error"; exit 2`)

	dir := t.TempDir()
	_, err := c.Convert(context.Background(), filepath.Join(dir, "book.epub"), filepath.Join(dir, "book.mobi"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.Is(err, apperrors.ErrConversion) {
		t.Errorf("expected ErrConversion, got %v", err)
	}
}

func TestConvert_MissingOutput(t *testing.T) {
	c := newTestConverter(t, time.Minute)
	installFakeBinary(t, c, `exit 0`)

	dir := t.TempDir()
	_, err := c.Convert(context.Background(), filepath.Join(dir, "book.epub"), filepath.Join(dir, "book.mobi"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.Is(err, apperrors.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestConvert_Timeout(t *testing.T) {
	c := newTestConverter(t, 100*time.Millisecond)
	installFakeBinary(t, c, `sleep 5`)

	dir := t.TempDir()
	start := time.Now()
	_, err := c.Convert(context.Background(), filepath.Join(dir, "book.epub"), filepath.Join(dir, "book.mobi"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.Is(err, apperrors.ErrConversion) {
		t.Errorf("expected ErrConversion, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout message, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("subprocess was not killed promptly: %s", elapsed)
	}
}
