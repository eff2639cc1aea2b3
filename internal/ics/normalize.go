// Package ics turns raw iCalendar text into normalized events.
//
// Floating date-times (no trailing Z and no loadable TZID) are read in
// Options.Location, which defaults to the machine's local zone at ingestion
// time. The same feed ingested on machines in different zones therefore yields
// different instants for floating values; this is a property of the data.
//
// RRULE is ignored: every VEVENT is a single occurrence.
package ics

import (
	"bufio"
	"bytes"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/model"
	"dailybrief/internal/timewindow"
)

// ErrParse marks a calendar document that has no usable VCALENDAR structure.
var ErrParse = errors.New("malformed calendar")

const (
	dateLayout        = "20060102"
	dateTimeLayout    = "20060102T150405"
	utcDateTimeLayout = "20060102T150405Z"

	defaultTimedSpan  int64 = 3600
	defaultAllDaySpan int64 = timewindow.DaySeconds
)

type Options struct {
	// Source tags every produced event.
	Source string
	// Location interprets floating date-times. Nil means time.Local.
	Location *time.Location
	// Now is the reference instant for the today/tomorrow filter and the
	// liveness flags. Nil means time.Now.
	Now func() time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Normalize parses every VCALENDAR block in raw and returns the deduplicated
// events overlapping today or tomorrow (UTC dates), all-day events first.
// A document without a parsable VCALENDAR envelope is an ErrParse error. A
// broken or unterminated VEVENT is skipped, as is one without UID or DTSTART.
func Normalize(raw []byte, opts Options) ([]model.Event, error) {
	blocks, err := splitCalendars(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "error scanning calendar: %v", err)
	}
	if len(blocks) == 0 {
		return nil, errors.Wrap(ErrParse, "no VCALENDAR block found")
	}

	now := opts.now()
	window := timewindow.At(now)
	today := timewindow.DayIndex(window.Now)
	tomorrow := today + 1

	events := make([]model.Event, 0)
	seen := make(map[string]int)
	for i, block := range blocks {
		vevents, err := parseBlock(block, opts.Source)
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "calendar block %d: %v", i, err)
		}
		for _, vevent := range vevents {
			if vevent == nil {
				log.Debug().Str("source", opts.Source).Msg("skipping unterminated vevent")
				continue
			}
			ev, reason := normalizeEvent(vevent, opts)
			if reason != "" {
				log.Debug().
					Str("source", opts.Source).
					Str("eventID", ev.ID).
					Str("reason", reason).
					Msg("skipping vevent")
				continue
			}
			if timewindow.DayIndex(ev.StartTime) > tomorrow || timewindow.DayIndex(ev.EndTime) < today {
				continue
			}
			if idx, ok := seen[ev.ID]; ok {
				events[idx] = ev
				continue
			}
			seen[ev.ID] = len(events)
			events = append(events, ev)
		}
	}

	window.Annotate(events)
	model.SortEvents(events)
	log.Debug().Str("source", opts.Source).Int("events", len(events)).Msg("calendar normalized")
	return events, nil
}

// normalizeEvent returns a non-empty reason when the VEVENT must be dropped.
func normalizeEvent(vevent *ics.VEvent, opts Options) (model.Event, string) {
	ev := model.Event{
		ID:          valueOrEmpty(vevent.GetProperty(ics.ComponentPropertyUniqueId)),
		Summary:     unescapeText(valueOrEmpty(vevent.GetProperty(ics.ComponentPropertySummary))),
		Description: unescapeText(valueOrEmpty(vevent.GetProperty(ics.ComponentPropertyDescription))),
		Location:    unescapeText(valueOrEmpty(vevent.GetProperty(ics.ComponentPropertyLocation))),
		HTMLLink:    valueOrEmpty(vevent.GetProperty(ics.ComponentPropertyUrl)),
		Source:      opts.Source,
	}
	if ev.ID == "" {
		return ev, "missing UID"
	}
	if strings.TrimSpace(ev.Summary) == "" {
		ev.Summary = model.DefaultSummary
	}

	start, ok := parseTime(vevent.GetProperty(ics.ComponentPropertyDtStart), opts.location())
	if !ok {
		return ev, "missing or invalid DTSTART"
	}
	ev.StartTime = start.unix
	ev.AllDay = start.dateOnly

	span := defaultTimedSpan
	if ev.AllDay {
		span = defaultAllDaySpan
	}
	ev.EndTime = ev.StartTime + span
	if end, ok := parseTime(vevent.GetProperty(ics.ComponentPropertyDtEnd), opts.location()); ok && end.unix > ev.StartTime {
		ev.EndTime = end.unix
	}
	return ev, ""
}

type instant struct {
	unix     int64
	dateOnly bool
}

// parseTime resolves a DTSTART/DTEND property. An explicit VALUE parameter
// wins; otherwise an 8 character value is a date.
func parseTime(prop *ics.IANAProperty, floating *time.Location) (instant, bool) {
	if prop == nil {
		return instant{}, false
	}
	value := strings.TrimSpace(prop.Value)
	if value == "" {
		return instant{}, false
	}

	dateOnly := len(value) == len(dateLayout)
	if kind := param(prop, "VALUE"); kind != "" {
		dateOnly = strings.EqualFold(kind, "DATE")
	}

	if dateOnly {
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return instant{}, false
		}
		return instant{unix: t.Unix(), dateOnly: true}, true
	}

	if strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z") {
		t, err := time.Parse(utcDateTimeLayout, strings.ToUpper(value))
		if err != nil {
			return instant{}, false
		}
		return instant{unix: t.Unix()}, true
	}

	loc := floating
	if tzid := param(prop, "TZID"); tzid != "" {
		if l, err := time.LoadLocation(strings.Trim(tzid, `"`)); err == nil {
			loc = l
		} else {
			log.Debug().Err(err).Str("tzid", tzid).Msg("unknown TZID, treating value as floating")
		}
	}
	t, err := time.ParseInLocation(dateTimeLayout, value, loc)
	if err != nil {
		return instant{}, false
	}
	return instant{unix: t.Unix()}, true
}

func param(prop *ics.IANAProperty, name string) string {
	for key, values := range prop.ICalParameters {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func valueOrEmpty(prop *ics.IANAProperty) string {
	if prop == nil {
		return ""
	}
	return prop.Value
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

// parseBlock parses one VCALENDAR block. When the block does not parse as a
// whole, each VEVENT is parsed on its own inside the block's envelope and the
// broken ones are dropped. Only a broken envelope is an error.
func parseBlock(block []byte, source string) ([]*ics.VEvent, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(block))
	if err == nil {
		return cal.Events(), nil
	}

	header, chunks := splitEvents(block)
	if _, herr := ics.ParseCalendar(bytes.NewReader(wrapEnvelope(header, nil))); herr != nil {
		return nil, err
	}
	log.Debug().Err(err).Str("source", source).Int("vevents", len(chunks)).Msg("calendar block is malformed, parsing vevents one by one")

	var out []*ics.VEvent
	for i, chunk := range chunks {
		cal, cerr := ics.ParseCalendar(bytes.NewReader(wrapEnvelope(header, chunk)))
		if cerr != nil {
			log.Debug().Err(cerr).Str("source", source).Int("vevent", i).Msg("skipping malformed vevent")
			continue
		}
		out = append(out, cal.Events()...)
	}
	return out, nil
}

// splitEvents separates a VCALENDAR block into its envelope lines (everything
// outside VEVENTs, without END:VCALENDAR) and its complete VEVENT chunks.
// A VEVENT missing its END:VEVENT is dropped.
func splitEvents(block []byte) ([]byte, [][]byte) {
	var (
		header bytes.Buffer
		chunks [][]byte
		chunk  *bytes.Buffer
	)
	for _, line := range strings.Split(string(block), "\r\n") {
		m := marker(line)
		switch m {
		case "", "END:VCALENDAR":
			continue
		case "BEGIN:VEVENT":
			chunk = &bytes.Buffer{}
		}
		if chunk == nil {
			header.WriteString(line)
			header.WriteString("\r\n")
			continue
		}
		chunk.WriteString(line)
		chunk.WriteString("\r\n")
		if m == "END:VEVENT" {
			chunks = append(chunks, chunk.Bytes())
			chunk = nil
		}
	}
	return header.Bytes(), chunks
}

func wrapEnvelope(header, chunk []byte) []byte {
	out := make([]byte, 0, len(header)+len(chunk)+len(endCalendar))
	out = append(out, header...)
	out = append(out, chunk...)
	return append(out, endCalendar...)
}

const endCalendar = "END:VCALENDAR\r\n"

// marker returns the upper-cased line with trailing blanks removed. Folded
// continuation lines start with a blank and never match a BEGIN/END marker.
func marker(line string) string {
	return strings.ToUpper(strings.TrimRight(line, " \t"))
}

// splitCalendars cuts raw into BEGIN:VCALENDAR ... END:VCALENDAR blocks.
// Text outside any block is dropped. An unterminated trailing block is kept so
// the parser can report it.
func splitCalendars(raw []byte) ([][]byte, error) {
	var (
		blocks  [][]byte
		current *bytes.Buffer
	)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimPrefix(strings.TrimRight(sc.Text(), "\r"), "\uFEFF")
		m := marker(line)
		if m == "BEGIN:VCALENDAR" {
			current = &bytes.Buffer{}
		}
		if current == nil {
			continue
		}
		current.WriteString(line)
		current.WriteString("\r\n")
		if m == "END:VCALENDAR" {
			blocks = append(blocks, current.Bytes())
			current = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		blocks = append(blocks, current.Bytes())
	}
	return blocks, nil
}
