package importer

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/config"
)

var _ CalImporter = (*CalDAV)(nil)

// emptyCalendar keeps "no matching objects" distinct from a malformed document.
const emptyCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//dailybrief//caldav//EN\r\nEND:VCALENDAR\r\n"

// CalDAV queries VEVENTs of one calendar collection and re-encodes the
// matching objects as consecutive VCALENDAR blocks.
type CalDAV struct {
	cl   *caldav.Client
	path string
	now  func() time.Time
}

func NewCalDAV(cfg config.Calendar) (*CalDAV, error) {
	var httpClient webdav.HTTPClient = &http.Client{Timeout: urlTimeout}
	if cfg.User != "" && cfg.Pass != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, cfg.User, cfg.Pass)
	}
	cl, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "error creating caldav client")
	}
	return &CalDAV{cl: cl, path: cfg.Path, now: time.Now}, nil
}

func (c *CalDAV) Source() string {
	return config.SourceCalDAV
}

func (c *CalDAV) Get(ctx context.Context) (Payload, error) {
	now := c.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from,
				End:   from.Add(48 * time.Hour),
			}},
		},
	}
	objects, err := c.cl.QueryCalendar(ctx, c.path, query)
	if err != nil {
		return Payload{}, errors.Wrap(err, "error querying caldav calendar")
	}

	var buf bytes.Buffer
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		var block bytes.Buffer
		if err := ical.NewEncoder(&block).Encode(obj.Data); err != nil {
			log.Warn().Err(err).Str("path", obj.Path).Msg("skipping caldav object that cannot be encoded")
			continue
		}
		buf.Write(block.Bytes())
	}
	if buf.Len() == 0 {
		buf.WriteString(emptyCalendar)
	}
	log.Debug().Int("objects", len(objects)).Str("path", c.path).Msg("caldav query completed")
	return Payload{Body: buf.Bytes()}, nil
}
