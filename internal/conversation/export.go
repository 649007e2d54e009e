package conversation

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
)

// Export is a rendered transcript ready to be saved or served.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportOptions carries the clock and zone an exporter renders with.
type ExportOptions struct {
	Now      time.Time
	Location *time.Location
}

// Exporter encodes a log into one file format.
type Exporter interface {
	Extension() string
	ContentType() string
	Encode(msgs []types.Message, opts ExportOptions) ([]byte, error)
}

// Registry maps format names to exporters.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates an empty export registry.
func NewRegistry() *Registry {
	return &Registry{exporters: make(map[string]Exporter)}
}

// DefaultRegistry has json, text and html registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", JSONExporter{})
	r.Register("text", TextExporter{})
	r.Register("html", HTMLExporter{})
	return r
}

// Register adds or replaces the exporter for name.
func (r *Registry) Register(name string, e Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[strings.ToLower(name)] = e
}

// Names returns registered formats in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.exporters))
	for n := range r.exporters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render encodes msgs with the exporter registered for format. "txt" is
// accepted as an alias for text.
func (r *Registry) Render(format string, msgs []types.Message, opts ExportOptions) (*Export, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	if name == "txt" {
		name = "text"
	}
	r.mu.RLock()
	e, ok := r.exporters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown export format %q (available: %s)", format, strings.Join(r.Names(), ", "))
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	data, err := e.Encode(msgs, opts)
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", name, err)
	}
	return &Export{
		Filename:    Filename(opts.Now, e.Extension()),
		ContentType: e.ContentType(),
		Data:        data,
	}, nil
}

// Filename is chat-export-<UTC date>.<ext>.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("chat-export-%s.%s", now.UTC().Format("2006-01-02"), ext)
}

// WriteExport saves e into dir atomically and returns the final path.
func WriteExport(dir string, e *Export) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, e.Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, e.Data, 0o644); err != nil {
		return "", fmt.Errorf("write temp export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp export: %w", err)
	}
	return path, nil
}

// exportEntry is one element of the JSON export. Structured fields appear
// only for agent turns that carried an answer.
type exportEntry struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Timestamp  string          `json:"timestamp"`
	Confidence *float64        `json:"confidence,omitempty"`
	Citations  *[]rag.Citation `json:"citations,omitempty"`
	Notes      *[]string       `json:"notes,omitempty"`
	Metrics    *rag.Metrics    `json:"metrics,omitempty"`
}

type JSONExporter struct{}

func (JSONExporter) Extension() string   { return "json" }
func (JSONExporter) ContentType() string { return "application/json" }

func (JSONExporter) Encode(msgs []types.Message, _ ExportOptions) ([]byte, error) {
	entries := make([]exportEntry, len(msgs))
	for i, m := range msgs {
		entry := exportEntry{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format(state.TimestampFormat),
		}
		if d := m.Data; d != nil {
			conf := d.Confidence
			citations := d.Citations
			if citations == nil {
				citations = []rag.Citation{}
			}
			notes := d.Notes
			if notes == nil {
				notes = []string{}
			}
			metrics := d.Metrics
			entry.Confidence = &conf
			entry.Citations = &citations
			entry.Notes = &notes
			entry.Metrics = &metrics
		}
		entries[i] = entry
	}
	return json.MarshalIndent(entries, "", "  ")
}

// TextTimeLayout renders timestamps in the text transcript.
const TextTimeLayout = "1/2/2006, 3:04:05 PM"

// TextDelimiter separates message blocks in the text transcript.
const TextDelimiter = "\n\n---\n\n"

type TextExporter struct{}

func (TextExporter) Extension() string   { return "txt" }
func (TextExporter) ContentType() string { return "text/plain; charset=utf-8" }

func (TextExporter) Encode(msgs []types.Message, opts ExportOptions) ([]byte, error) {
	blocks := make([]string, len(msgs))
	for i, m := range msgs {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s:\n%s", m.Timestamp.In(opts.Location).Format(TextTimeLayout), speaker(m.Role), m.Content)
		if d := m.Data; d != nil {
			fmt.Fprintf(&b, "\n\nConfidence: %d%%", int(math.Round(d.Confidence*100)))
			if len(d.Citations) > 0 {
				b.WriteString("\n\nSources:")
				for j, c := range d.Citations {
					fmt.Fprintf(&b, "\n  %d. %s - \"%s\"", j+1, c.DocID, c.Quote)
				}
			}
		}
		blocks[i] = b.String()
	}
	return []byte(strings.Join(blocks, TextDelimiter)), nil
}

func speaker(role types.Author) string {
	if role == types.AuthorUser {
		return "You"
	}
	return "Agent"
}
