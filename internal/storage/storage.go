package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const commandHistoryLimit int = 20

type Storage struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc

	// serializes read-modify-write of guild records
	mu sync.Mutex
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	RequestID   string    `json:"request_id"`
	Datetime    time.Time `json:"datetime"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

// New opens the datastore at filePath. The background autosave runs until ctx is
// cancelled or Close is called.
func New(ctx context.Context, filePath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	ds, err := datastore.New(ctx, filePath, datastore.WithLogger(logger))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds, cancel: cancel}, nil
}

// Close stops the autosave loop and flushes the store to disk.
func (s *Storage) Close() error {
	s.cancel()
	return s.ds.Close()
}

func (s *Storage) getGuildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("failed to read guild record: %w", err)
	}
	return &record, nil
}

// AppendCommandToHistory appends a command history record for a guild, keeping
// only the most recent entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getGuildRecord(guildID)
	if err != nil {
		return err
	}

	list := append(record.CommandsHistoryList, command)
	if len(list) > commandHistoryLimit {
		list = list[len(list)-commandHistoryLimit:]
	}
	record.CommandsHistoryList = list

	if err := s.ds.Set(guildID, record); err != nil {
		return fmt.Errorf("failed to store guild record: %w", err)
	}
	return nil
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	if record.CommandsHistoryList == nil {
		return []CommandHistoryRecord{}, nil
	}
	return record.CommandsHistoryList, nil
}
