package model

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNotConfigured is returned by sources that have no configuration.
// Callers treat it as "no data", never as a failure.
var ErrNotConfigured = errors.New("source not configured")

const DefaultSummary = "(No title)"

// Event is a calendar event normalized to UTC unix seconds.
// IsNow and IsSoon are derived from the query instant and never persisted.
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	AllDay      bool   `json:"all_day"`
	HTMLLink    string `json:"html_link,omitempty"`
	IsNow       bool   `json:"is_now"`
	IsSoon      bool   `json:"is_soon"`
	Source      string `json:"source"`
}

// SortEvents orders all-day events first, then by ascending start time.
// Equal keys keep their input order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].AllDay != events[j].AllDay {
			return events[i].AllDay
		}
		return events[i].StartTime < events[j].StartTime
	})
}

type EmailHeader struct {
	ID          string `json:"id"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name,omitempty"`
	Subject     string `json:"subject"`
	ReceivedAt  int64  `json:"received_at"`
	IsUnread    bool   `json:"is_unread"`
	IsImportant bool   `json:"is_important"`
	Snippet     string `json:"snippet,omitempty"`
}

// Brief is the combined daily view. It is built on every request and never stored.
type Brief struct {
	GitHub      *GitHubBrief  `json:"github"`
	Calendar    []Event       `json:"calendar"`
	Email       []EmailHeader `json:"email"`
	GeneratedAt int64         `json:"generated_at"`
}
