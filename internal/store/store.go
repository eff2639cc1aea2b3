// Package store persists per-source cache partitions in a single JSON file.
// Every mutation rewrites the file through a temp file and rename, so a reader
// sees either the previous or the next state of a partition, never a mix.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/model"
	"dailybrief/internal/timewindow"
)

// Error reports a fault of the persistence layer itself.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorage reports whether err originated in the store.
func IsStorage(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// Meta tracks the last successful fetch of a source.
type Meta struct {
	Source    string `json:"source"`
	LastFetch int64  `json:"last_fetch"`
	ETag      string `json:"etag,omitempty"`
}

type record struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	AllDay      bool   `json:"all_day"`
	HTMLLink    string `json:"html_link,omitempty"`
	CachedAt    int64  `json:"cached_at"`
}

type document struct {
	Events    map[string][]record        `json:"events"`
	Snapshots map[string]json.RawMessage `json:"snapshots"`
	Meta      map[string]Meta            `json:"meta"`
}

func newDocument() *document {
	return &document{
		Events:    make(map[string][]record),
		Snapshots: make(map[string]json.RawMessage),
		Meta:      make(map[string]Meta),
	}
}

type FileStore struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

func Open(path string) (*FileStore, error) {
	if path == "" {
		return nil, &Error{Op: "open", Err: errors.New("empty path")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &Error{Op: "open", Err: errors.Wrap(err, "error creating cache directory")}
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// ReplaceEvents swaps the whole partition of source for events and stamps the
// source's last fetch, in a single write.
func (s *FileStore) ReplaceEvents(ctx context.Context, source string, events []model.Event, etag string) error {
	return s.update(ctx, "replace events", func(doc *document, now int64) error {
		records := make([]record, 0, len(events))
		seen := make(map[string]int, len(events))
		for _, ev := range events {
			r := record{
				ID:          ev.ID,
				Summary:     ev.Summary,
				Description: ev.Description,
				Location:    ev.Location,
				StartTime:   ev.StartTime,
				EndTime:     ev.EndTime,
				AllDay:      ev.AllDay,
				HTMLLink:    ev.HTMLLink,
				CachedAt:    now,
			}
			if idx, ok := seen[ev.ID]; ok {
				records[idx] = r
				continue
			}
			seen[ev.ID] = len(records)
			records = append(records, r)
		}
		doc.Events[source] = records
		doc.Meta[source] = Meta{Source: source, LastFetch: now, ETag: etag}
		return nil
	})
}

// EventsForToday returns cached events overlapping the today window at now,
// annotated and sorted. With no sources every partition is read.
func (s *FileStore) EventsForToday(ctx context.Context, now time.Time, sources ...string) ([]model.Event, error) {
	doc, err := s.read(ctx, "events for today")
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		for source := range doc.Events {
			sources = append(sources, source)
		}
		sort.Strings(sources)
	}
	events := make([]model.Event, 0)
	for _, source := range sources {
		for _, r := range doc.Events[source] {
			events = append(events, model.Event{
				ID:          r.ID,
				Summary:     r.Summary,
				Description: r.Description,
				Location:    r.Location,
				StartTime:   r.StartTime,
				EndTime:     r.EndTime,
				AllDay:      r.AllDay,
				HTMLLink:    r.HTMLLink,
				Source:      source,
			})
		}
	}
	return timewindow.At(now).Filter(events), nil
}

// SaveSnapshot stores payload as the snapshot of source and stamps its last fetch.
func (s *FileStore) SaveSnapshot(ctx context.Context, source string, payload any, etag string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: "save snapshot", Err: errors.Wrap(err, "error encoding snapshot")}
	}
	return s.update(ctx, "save snapshot", func(doc *document, now int64) error {
		doc.Snapshots[source] = raw
		doc.Meta[source] = Meta{Source: source, LastFetch: now, ETag: etag}
		return nil
	})
}

// LoadSnapshot decodes the snapshot of source into out. found is false when
// the source was never saved.
func (s *FileStore) LoadSnapshot(ctx context.Context, source string, out any) (Meta, bool, error) {
	doc, err := s.read(ctx, "load snapshot")
	if err != nil {
		return Meta{}, false, err
	}
	raw, ok := doc.Snapshots[source]
	if !ok {
		return Meta{}, false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return Meta{}, false, &Error{Op: "load snapshot", Err: errors.Wrapf(err, "error decoding snapshot %s", source)}
	}
	return doc.Meta[source], true, nil
}

func (s *FileStore) Meta(ctx context.Context, source string) (Meta, bool, error) {
	doc, err := s.read(ctx, "meta")
	if err != nil {
		return Meta{}, false, err
	}
	m, ok := doc.Meta[source]
	return m, ok, nil
}

// Status lists the metadata of every source, ordered by source name.
func (s *FileStore) Status(ctx context.Context) ([]Meta, error) {
	doc, err := s.read(ctx, "status")
	if err != nil {
		return nil, err
	}
	out := make([]Meta, 0, len(doc.Meta))
	for _, m := range doc.Meta {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Prune drops cached events that ended before midnight UTC of now.
func (s *FileStore) Prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := timewindow.At(now).Start
	removed := 0
	err := s.update(ctx, "prune", func(doc *document, _ int64) error {
		for source, records := range doc.Events {
			kept := records[:0]
			for _, r := range records {
				if r.EndTime < cutoff {
					removed++
					continue
				}
				kept = append(kept, r)
			}
			doc.Events[source] = kept
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Str("task", "cache-prune").Msgf("deleted %d events", removed)
	return removed, nil
}

// Clear drops all partitions, snapshots and metadata.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return &Error{Op: "clear", Err: errors.Wrap(err, "error removing cache file")}
	}
	return nil
}

func (s *FileStore) read(ctx context.Context, op string) (*document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.load()
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	return doc, nil
}

func (s *FileStore) update(ctx context.Context, op string, fn func(doc *document, now int64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if err := fn(doc, s.now().Unix()); err != nil {
		return &Error{Op: op, Err: err}
	}
	if err := s.write(doc); err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading cache file")
	}
	doc := newDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "error decoding cache file")
	}
	if doc.Events == nil {
		doc.Events = make(map[string][]record)
	}
	if doc.Snapshots == nil {
		doc.Snapshots = make(map[string]json.RawMessage)
	}
	if doc.Meta == nil {
		doc.Meta = make(map[string]Meta)
	}
	return doc, nil
}

func (s *FileStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding cache file")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "error writing temp cache file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "error renaming temp cache file")
	}
	return nil
}
