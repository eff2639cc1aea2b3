package importer

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"dailybrief/internal/config"
)

var _ CalImporter = (*URL)(nil)

const urlTimeout = 30 * time.Second

// URL fetches an ICS feed over HTTP. Any non-2xx status is an error.
type URL struct {
	rc  *resty.Client
	url string
}

func NewURL(cfg config.Calendar) *URL {
	rc := resty.New().SetTimeout(urlTimeout)
	if cfg.User != "" {
		rc.SetBasicAuth(cfg.User, cfg.Pass)
	}
	return &URL{rc: rc, url: cfg.URL}
}

func (u *URL) Source() string {
	return config.SourceICSURL
}

func (u *URL) Get(ctx context.Context) (Payload, error) {
	resp, err := u.rc.R().
		SetContext(ctx).
		SetHeader("Accept", "text/calendar, */*").
		Get(u.url)
	if err != nil {
		return Payload{}, errors.Wrap(err, "error getting calendar")
	}
	if !resp.IsSuccess() {
		return Payload{}, errors.Errorf("error getting calendar: %s", resp.Status())
	}
	return Payload{Body: resp.Body(), ETag: resp.Header().Get("ETag")}, nil
}
