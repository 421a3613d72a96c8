package source_resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/keshon/citron/internal/music/sources"
)

var ErrEmptyInput = errors.New("nothing to play")

// SourceResolver picks the source for a /play input. Sources are tried in order,
// so the catch-all search source goes last.
type SourceResolver struct {
	Sources []sources.Source
}

func New(srcs ...sources.Source) *SourceResolver {
	return &SourceResolver{Sources: srcs}
}

// Resolve returns the first source that supports input.
func (r *SourceResolver) Resolve(input string) (sources.Source, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	for _, s := range r.Sources {
		if s.Supports(input) {
			return s, nil
		}
	}
	if isURL(input) {
		return nil, errors.New("unsupported link: " + input)
	}
	return nil, errors.New("no matching source found")
}

// Fetch resolves req.Input and fetches it from the chosen source.
func (r *SourceResolver) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	src, err := r.Resolve(req.Input)
	if err != nil {
		return nil, err
	}
	req.Input = strings.TrimSpace(req.Input)
	return src.Fetch(ctx, req)
}
