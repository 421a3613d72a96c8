// Package middleware holds the cmd.Middleware used by chat commands.
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/storage"
	"github.com/keshon/citron/pkg/cmd"
)

// WithGuildOnly wraps a command to enforce guild-only access.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.MessageContext); ok && v.GuildID() == "" {
				return v.Reply.Send("That one only works inside a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Cooldown is a per-user limiter shared by every command it wraps.
type Cooldown struct {
	mu      sync.Mutex
	every   time.Duration
	users   map[string]*cooldownEntry
	now     func() time.Time
	maxIdle time.Duration
}

func NewCooldown(every time.Duration) *Cooldown {
	return &Cooldown{
		every:   every,
		users:   make(map[string]*cooldownEntry),
		now:     time.Now,
		maxIdle: 10 * time.Minute,
	}
}

// Allow reports whether userID may run a command now.
func (cd *Cooldown) Allow(userID string) bool {
	if cd.every <= 0 {
		return true
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()

	now := cd.now()
	cd.prune(now)

	e, ok := cd.users[userID]
	if !ok {
		e = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(cd.every), 1)}
		cd.users[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (cd *Cooldown) prune(now time.Time) {
	for id, e := range cd.users {
		if now.Sub(e.lastSeen) > cd.maxIdle {
			delete(cd.users, id)
		}
	}
}

// WithCooldown drops commands from users who send them faster than cd allows.
func WithCooldown(cd *Cooldown) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.MessageContext); ok && !cd.Allow(v.AuthorID()) {
				return v.Reply.Send("Slow down a little, I can't keep up!")
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger logs every command run under a request id and records it in
// the guild's command history.
func WithCommandLogger(logger *slog.Logger) cmd.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.MessageContext)
			if !ok {
				return c.Run(ctx, inv)
			}

			requestID := uuid.NewString()
			log := logger.With(
				slog.String("request_id", requestID),
				slog.String("command", c.Name()),
				slog.String("guild", v.GuildID()),
				slog.String("user", v.AuthorName()),
			)

			start := time.Now()
			err := c.Run(ctx, inv)
			if err != nil {
				log.Error("Command failed", slog.Duration("took", time.Since(start)), slog.Any("error", err))
			} else {
				log.Info("Command handled", slog.Duration("took", time.Since(start)))
			}

			if v.Storage != nil && v.GuildID() != "" {
				record := historyRecord(v, c.Name(), requestID)
				if e := v.Storage.AppendCommandToHistory(v.GuildID(), record); e != nil {
					log.Warn("Failed to log command", slog.Any("error", e))
				}
			}
			return err
		})
	}
}

func historyRecord(v *command.MessageContext, name, requestID string) storage.CommandHistoryRecord {
	record := storage.CommandHistoryRecord{
		ChannelID: v.ChannelID(),
		UserID:    v.AuthorID(),
		Username:  v.AuthorName(),
		Command:   name,
		Param:     strings.Join(v.Args, " "),
		RequestID: requestID,
		Datetime:  time.Now(),
	}
	if v.Session != nil && v.Session.State != nil {
		if ch, err := v.Session.State.Channel(v.ChannelID()); err == nil {
			record.ChannelName = ch.Name
		}
		if g, err := v.Session.State.Guild(v.GuildID()); err == nil {
			record.GuildName = g.Name
		}
	}
	return record
}
