// Package drive finds and downloads audio files from a Google Drive.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/sources"
	"github.com/keshon/citron/pkg/retrylimit"
)

const (
	pageSize   = 10
	listFields = "files(id, name, size)"
)

// NewService builds a Drive client from a service account or OAuth credentials JSON.
func NewService(ctx context.Context, credentialsJSON string, opts ...option.ClientOption) (*drive.Service, error) {
	if credentialsJSON != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return svc, nil
}

type DriveSource struct {
	svc       *drive.Service
	downloads *sources.Downloads
	limiter   *retrylimit.AdaptiveLimiter
	retry     retrylimit.Config
	log       *slog.Logger
}

func New(svc *drive.Service, downloads *sources.Downloads, logger *slog.Logger) *DriveSource {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "drive"))

	retry := retrylimit.DefaultConfig()
	retry.Classify = googleStatus
	retry.Logger = log

	return &DriveSource{
		svc:       svc,
		downloads: downloads,
		limiter:   retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		retry:     retry,
		log:       log,
	}
}

func googleStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return retrylimit.StatusOf(err)
}

func (d *DriveSource) Name() string {
	return sources.SourceDrive
}

// Supports accepts any search words that are not a link; Drive is the fallback source.
func (d *DriveSource) Supports(input string) bool {
	input = strings.TrimSpace(input)
	return input != "" && !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://")
}

// Search lists non-folder files whose name contains query.
func (d *DriveSource) Search(ctx context.Context, query string) ([]*drive.File, error) {
	q := fmt.Sprintf("mimeType != 'application/vnd.google-apps.folder' and name contains '%s' and trashed = false", escapeQuery(query))

	var files []*drive.File
	err := retrylimit.Do(ctx, d.limiter, d.retry, func(ctx context.Context) error {
		res, err := d.svc.Files.List().
			Q(q).
			PageSize(pageSize).
			Fields(googleapi.Field(listFields)).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		files = res.Files
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drive search failed: %w", err)
	}
	return files, nil
}

func (d *DriveSource) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	query := strings.TrimSpace(req.Input)
	files, err := d.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	switch len(files) {
	case 0:
		return nil, sources.ErrNotFound
	case 1:
	default:
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}
		return nil, &sources.AmbiguousError{Query: query, Names: names}
	}

	file := files[0]
	path := d.downloads.Path(req.Scope, file.Name)
	downloaded, err := d.downloads.Ensure(ctx, path, req.Notify, func(ctx context.Context, tmp string) error {
		return d.download(ctx, file, tmp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", file.Name, err)
	}

	return &sources.Result{
		Track: sequencer.Track{
			Title: sources.Describe(path, file.Name),
			Path:  path,
		},
		SourceName: sources.SourceDrive,
		Downloaded: downloaded,
	}, nil
}

// download writes the file content to path.
func (d *DriveSource) download(ctx context.Context, file *drive.File, path string) error {
	resp, err := d.svc.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	size := resp.ContentLength
	if size <= 0 {
		size = file.Size
	}
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(io.Discard),
		progressbar.OptionShowBytes(true),
	)
	progress := &progressLogger{bar: bar, log: d.log.With(slog.String("file", file.Name))}

	_, copyErr := io.Copy(io.MultiWriter(out, progress), resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return err
	}
	_ = bar.Finish()
	return nil
}

// progressLogger logs download progress every 25 percent.
type progressLogger struct {
	bar    *progressbar.ProgressBar
	log    *slog.Logger
	logged int
}

func (p *progressLogger) Write(b []byte) (int, error) {
	n, err := p.bar.Write(b)
	if p.bar.GetMax64() <= 0 {
		return n, err
	}
	if step := int(p.bar.State().CurrentPercent*100) / 25; step > p.logged {
		p.logged = step
		p.log.Debug("Download progress", slog.Int("percent", step*25))
	}
	return n, err
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
