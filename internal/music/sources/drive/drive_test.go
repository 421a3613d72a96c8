package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/keshon/citron/internal/music/sources"
)

type fakeDrive struct {
	files     []map[string]any
	content   string
	failFirst int32
	listCalls atomic.Int32
	downloads atomic.Int32
	lastQuery atomic.Value
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/files"):
		n := f.listCalls.Add(1)
		f.lastQuery.Store(r.URL.Query().Get("q"))
		if n <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": f.files})
	case strings.Contains(r.URL.Path, "/files/") && r.URL.Query().Get("alt") == "media":
		f.downloads.Add(1)
		_, _ = w.Write([]byte(f.content))
	default:
		http.NotFound(w, r)
	}
}

func newDriveSource(t *testing.T, fake *fakeDrive) (*DriveSource, *sources.Downloads) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := NewService(context.Background(), "",
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	dl, err := sources.NewDownloads(t.TempDir(), nil)
	require.NoError(t, err)

	src := New(svc, dl, nil)
	src.retry.InitialDelay = 0
	src.retry.RateLimitDelay = 0
	src.retry.Jitter = false
	return src, dl
}

func TestFetch_SingleMatchDownloads(t *testing.T) {
	fake := &fakeDrive{
		files:   []map[string]any{{"id": "f1", "name": "lemon.mp3", "size": "5"}},
		content: "audio",
	}
	src, dl := newDriveSource(t, fake)

	notified := 0
	res, err := src.Fetch(context.Background(), sources.Request{Input: "lemon", Scope: "g1", Notify: func() { notified++ }})
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, dl.Path("g1", "lemon.mp3"), res.Track.Path)
	assert.Equal(t, "lemon.mp3", res.Track.Title)
	assert.Equal(t, sources.SourceDrive, res.SourceName)
	assert.Equal(t, 1, notified)

	data, err := os.ReadFile(res.Track.Path)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
	assert.NoFileExists(t, sources.PartPath(res.Track.Path))

	// second request finds the file on disk
	res, err = src.Fetch(context.Background(), sources.Request{Input: "lemon", Scope: "g1"})
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Equal(t, int32(1), fake.downloads.Load())
}

func TestFetch_NoMatch(t *testing.T) {
	src, _ := newDriveSource(t, &fakeDrive{})
	_, err := src.Fetch(context.Background(), sources.Request{Input: "nothing"})
	assert.ErrorIs(t, err, sources.ErrNotFound)
}

func TestFetch_Ambiguous(t *testing.T) {
	fake := &fakeDrive{files: []map[string]any{
		{"id": "1", "name": "love a.mp3"},
		{"id": "2", "name": "love b.mp3"},
	}}
	src, _ := newDriveSource(t, fake)

	_, err := src.Fetch(context.Background(), sources.Request{Input: "love"})
	var amb *sources.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"love a.mp3", "love b.mp3"}, amb.Names)
	assert.Equal(t, int32(0), fake.downloads.Load())
}

func TestSearch_RetriesServerErrorsAndEscapesQuery(t *testing.T) {
	fake := &fakeDrive{failFirst: 2, files: []map[string]any{{"id": "1", "name": "rock'n'roll.mp3"}}}
	src, _ := newDriveSource(t, fake)

	files, err := src.Search(context.Background(), "rock'n'roll")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int32(3), fake.listCalls.Load())
	assert.Contains(t, fake.lastQuery.Load(), `name contains 'rock\'n\'roll'`)
	assert.Contains(t, fake.lastQuery.Load(), "mimeType != 'application/vnd.google-apps.folder'")
}

func TestGoogleStatus(t *testing.T) {
	assert.Equal(t, 429, googleStatus(&googleapi.Error{Code: 429}))
	assert.Equal(t, 0, googleStatus(errors.New("dial tcp: timeout")))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s \\ fine`, escapeQuery(`it's \ fine`))
}

func TestSupports(t *testing.T) {
	src, _ := newDriveSource(t, &fakeDrive{})
	assert.True(t, src.Supports("lemon song"))
	assert.False(t, src.Supports("  "))
	assert.False(t, src.Supports("https://example.com/a.mp3"))
	assert.Equal(t, sources.SourceDrive, src.Name())
}
