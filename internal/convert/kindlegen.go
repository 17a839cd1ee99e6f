// Package convert wraps the kindlegen binary for EPUB to MOBI conversion.
package convert

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

// binaryName is the kindlegen executable name inside the bin directory.
const binaryName = "kindlegen"

// Platform archive URLs published by Amazon.
var archiveURLs = map[string]string{
	"darwin":  "https://kindlegen.s3.amazonaws.com/KindleGen_Mac_i386_v2_9.zip",
	"linux":   "https://kindlegen.s3.amazonaws.com/kindlegen_linux_2.6_i386_v2_9.tar.gz",
	"windows": "https://kindlegen.s3.amazonaws.com/kindlegen_win32_v2_9.zip",
}

// Converter runs kindlegen against uploaded EPUB files. The binary
// presence check happens at most once per process; concurrent first use
// performs a single download.
type Converter struct {
	binDir  string
	timeout time.Duration
	logger  *slog.Logger

	once    sync.Once
	onceErr error

	// fetch downloads an archive. Swapped out in tests.
	fetch func(ctx context.Context, url string) ([]byte, error)
}

// New creates a Converter storing its binary under binDir.
func New(binDir string, timeout time.Duration, logger *slog.Logger) *Converter {
	return &Converter{
		binDir:  binDir,
		timeout: timeout,
		logger:  logger,
		fetch:   fetchArchive,
	}
}

// BinaryPath returns the expected location of the kindlegen binary.
func (c *Converter) BinaryPath() string {
	return filepath.Join(c.binDir, binaryName)
}

// EnsureBinary makes sure the kindlegen binary exists, downloading and
// extracting the platform archive on first use. Subsequent calls are
// no-ops; a failed first attempt is sticky for the process lifetime.
func (c *Converter) EnsureBinary(ctx context.Context) error {
	c.once.Do(func() {
		c.onceErr = c.ensureBinary(ctx)
	})
	return c.onceErr
}

func (c *Converter) ensureBinary(ctx context.Context) error {
	path := c.BinaryPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	url, ok := archiveURLs[runtime.GOOS]
	if !ok {
		return apperrors.Conversionf("no kindlegen build for %s", runtime.GOOS)
	}

	c.logger.Info("downloading kindlegen", "url", url)
	archive, err := c.fetch(ctx, url)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConversion, "download kindlegen")
	}

	if err := os.MkdirAll(c.binDir, 0755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "create bin directory")
	}

	var bin []byte
	if filepath.Ext(url) == ".zip" {
		bin, err = extractFromZip(archive, binaryName)
	} else {
		bin, err = extractFromTarGz(archive, binaryName)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConversion, "extract kindlegen archive")
	}

	if err := os.WriteFile(path, bin, 0755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "install kindlegen binary")
	}

	c.logger.Info("installed kindlegen", "path", path)
	return nil
}

// Convert runs kindlegen on inputPath, producing outputPath. Exit codes
// 0 and 1 are success (1 means warnings); a hung subprocess is killed
// after the configured timeout. The input file is never removed.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := c.EnsureBinary(ctx); err != nil {
		return "", err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.BinaryPath(), inputPath, "-c2", "-o", filepath.Base(outputPath))
	cmd.Dir = filepath.Dir(outputPath)

	c.logger.Debug("executing kindlegen",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", apperrors.Conversionf("kindlegen timed out after %s", c.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// Exit 1 is success with warnings.
			c.logger.Debug("kindlegen finished with warnings", "output", string(output))
		} else {
			return "", apperrors.Wrapf(err, apperrors.CodeConversion, "kindlegen failed: %s", firstLine(output))
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", apperrors.Storagef("kindlegen reported success but %s was not created", outputPath)
	}

	return outputPath, nil
}

// fetchArchive downloads an archive over HTTP.
func fetchArchive(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// extractFromZip pulls one file out of a zip archive by base name.
func extractFromZip(archive []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}
	for _, f := range r.File {
		if filepath.Base(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// extractFromTarGz pulls one file out of a gzipped tarball by base name.
func extractFromTarGz(archive []byte, name string) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != name {
			continue
		}
		return io.ReadAll(tr)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// firstLine trims subprocess output to its first line for error messages.
func firstLine(output []byte) string {
	if i := bytes.IndexByte(output, '\n'); i >= 0 {
		output = output[:i]
	}
	return string(bytes.TrimSpace(output))
}
