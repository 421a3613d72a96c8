package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dhowden/tag"
	"golang.org/x/sync/singleflight"

	"github.com/keshon/citron/internal/music/sequencer"
)

const (
	SourceYouTube = "youtube"
	SourceDrive   = "drive"
)

// ErrNotFound means the search matched nothing.
var ErrNotFound = errors.New("no matching track found")

// Result is a fetched track.
type Result struct {
	Track      sequencer.Track
	SourceName string
	// Downloaded is false when the file was already present locally.
	Downloaded bool
}

// AmbiguousError is returned when a search matched more than one file.
type AmbiguousError struct {
	Query string
	Names []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d tracks match %q", len(e.Names), e.Query)
}

// Downloads owns the download directory and collapses concurrent fetches of the
// same file into one.
type Downloads struct {
	dir   string
	group singleflight.Group
	log   *slog.Logger
}

func NewDownloads(dir string, logger *slog.Logger) (*Downloads, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	return &Downloads{dir: dir, log: logger.With(slog.String("component", "downloads"))}, nil
}

func (d *Downloads) Dir() string { return d.dir }

// Path returns where a file called name is stored for scope. An empty scope
// stores it directly in the download directory.
func (d *Downloads) Path(scope, name string) string {
	if scope == "" {
		return filepath.Join(d.dir, SanitizeFilename(name))
	}
	return filepath.Join(d.dir, SanitizeFilename(scope), SanitizeFilename(name))
}

// Ensure makes sure path exists, running fetch if it does not. fetch writes to a
// temporary name that is renamed to path once complete, so path never holds a
// partial file. Concurrent callers for the same path share one fetch. It reports
// whether a download took place.
func (d *Downloads) Ensure(ctx context.Context, path string, notify func(), fetch func(ctx context.Context, path string) error) (bool, error) {
	if fileExists(path) {
		return false, nil
	}
	if notify != nil {
		notify()
	}

	_, err, _ := d.group.Do(path, func() (interface{}, error) {
		if fileExists(path) {
			return nil, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create download dir: %w", err)
		}

		tmp := PartPath(path)
		d.log.Info("Downloading", slog.String("path", path))
		if err := fetch(ctx, tmp); err != nil {
			_ = os.Remove(tmp)
			return nil, err
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return nil, fmt.Errorf("failed to move download into place: %w", err)
		}
		d.log.Info("Download complete", slog.String("path", path))
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// PartPath is the name a download is written to before it is complete. The
// extension is kept so tools that pick formats by extension still work.
func PartPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".part" + ext
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Describe returns the title embedded in the file's tags, or fallback.
func Describe(path, fallback string) string {
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fallback
	}
	title := strings.TrimSpace(m.Title())
	if title == "" {
		return fallback
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}

// SanitizeFilename strips path separators and characters that are invalid on
// common filesystems.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "track"
	}
	return out
}
