package sources

import "context"

type Source interface {
	// Name returns the string identifier ("youtube", "drive")
	Name() string

	// Supports checks if this source can handle the given input
	Supports(input string) bool

	// Fetch turns req.Input into a local, ready-to-play file under req.Scope.
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// Request is a single fetch.
type Request struct {
	Input string
	// Scope names the download subdirectory. Guilds use their own scope so a file
	// removed by one guild is never one another guild has queued.
	Scope string
	// Notify is called once right before a remote download starts. May be nil.
	Notify func()
}
