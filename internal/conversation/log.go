// Package conversation owns the ordered message log of the active
// conversation, its persistence and its export formats.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/ragchat/internal/observe"
	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
	logx "github.com/user/ragchat/pkg/logger"
)

// Log is the in-memory conversation log, written through to settings on
// every change. Subscribers receive a fresh copy after each change.
type Log struct {
	settings *state.Settings
	resetter types.SessionResetter
	formats  *Registry

	mu    sync.Mutex
	msgs  []types.Message
	value *observe.Value[[]types.Message]

	now func() time.Time
	loc *time.Location
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the clock used for export file names.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLocation sets the zone used for human-readable export timestamps.
func WithLocation(loc *time.Location) Option {
	return func(l *Log) { l.loc = loc }
}

// WithRegistry replaces the default export formats.
func WithRegistry(r *Registry) Option {
	return func(l *Log) { l.formats = r }
}

// Open restores the persisted log. A corrupt log comes back empty.
func Open(ctx context.Context, settings *state.Settings, resetter types.SessionResetter, opts ...Option) (*Log, error) {
	msgs, err := settings.Messages(ctx)
	if err != nil {
		return nil, err
	}
	l := &Log{
		settings: settings,
		resetter: resetter,
		formats:  DefaultRegistry(),
		msgs:     msgs,
		value:    observe.NewValue(cloneMessages(msgs)),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Append adds msg to the end of the log and persists the whole log. The
// message stays in memory even if persisting fails.
func (l *Log) Append(ctx context.Context, msg types.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	l.msgs = append(l.msgs, msg)
	l.value.Set(cloneMessages(l.msgs))

	if err := l.settings.SaveMessages(ctx, l.msgs); err != nil {
		logx.Error().Err(err).Msg("persist conversation log")
		return fmt.Errorf("persist conversation log: %w", err)
	}
	return nil
}

// Clear removes the persisted entry, starts a new conversation and then
// empties the log. It returns the new conversation id. On failure the log is
// left as it was, in memory and in the store.
func (l *Log) Clear(ctx context.Context) (types.ConversationID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.settings.DeleteMessages(ctx); err != nil {
		return "", fmt.Errorf("delete conversation log: %w", err)
	}
	id, err := l.resetter.Reset(ctx)
	if err != nil {
		if serr := l.settings.SaveMessages(ctx, l.msgs); serr != nil {
			logx.Error().Err(serr).Msg("restore conversation log after failed reset")
		}
		return "", fmt.Errorf("reset conversation: %w", err)
	}

	l.msgs = []types.Message{}
	l.value.Set([]types.Message{})
	return id, nil
}

// Messages returns a copy of the log in insertion order.
func (l *Log) Messages() []types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneMessages(l.msgs)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Subscribe streams log snapshots after every change.
func (l *Log) Subscribe() (<-chan []types.Message, func()) {
	return l.value.Subscribe()
}

// Export renders the current log in format. The log is not modified.
func (l *Log) Export(format string) (*Export, error) {
	return l.formats.Render(format, l.Messages(), ExportOptions{Now: l.now(), Location: l.loc})
}

// Formats lists the registered export formats.
func (l *Log) Formats() []string {
	return l.formats.Names()
}

func cloneMessages(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out
}
