// Package github fetches the code-review signals of the authenticated user.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"dailybrief/internal/config"
	"dailybrief/internal/model"
)

const (
	Source = "github"

	userPath          = "/user"
	searchPath        = "/search/issues"
	notificationsPath = "/notifications"

	searchPerPage       = "20"
	notificationPerPage = "30"
	previewLimit        = 200
	requestTimeout      = 30 * time.Second
)

type Client struct {
	rc    *resty.Client
	token string
	now   func() time.Time
}

func New(cfg config.GitHub) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "dailybrief/1.0").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{rc: rc, token: cfg.Token, now: time.Now}
}

// Fetch looks up the current user and then runs the four list queries
// concurrently. A failed list query yields an empty list; only a failed user
// lookup fails the fetch.
func (c *Client) Fetch(ctx context.Context) (model.GitHubBrief, error) {
	if c.token == "" {
		return model.GitHubBrief{}, model.ErrNotConfigured
	}
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return model.GitHubBrief{}, err
	}

	brief := model.EmptyGitHubBrief()
	brief.User = &user

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		brief.PRsToReview = orEmpty(c.PRsToReview(ctx, user.Login))
		return nil
	})
	p.Go(func(ctx context.Context) error {
		brief.MyOpenPRs = orEmpty(c.MyOpenPRs(ctx, user.Login))
		return nil
	})
	p.Go(func(ctx context.Context) error {
		brief.MentionedIssues = orEmpty(c.MentionedIssues(ctx, user.Login))
		return nil
	})
	p.Go(func(ctx context.Context) error {
		brief.Notifications = orEmpty(c.Notifications(ctx))
		return nil
	})
	_ = p.Wait()

	updated := c.now().Unix()
	brief.LastUpdated = &updated
	return brief, nil
}

func (c *Client) CurrentUser(ctx context.Context) (model.GitHubUser, error) {
	var u apiUser
	resp, err := c.request(ctx).SetResult(&u).Get(userPath)
	if err != nil {
		return model.GitHubUser{}, errors.Wrap(err, "error getting github user")
	}
	if !resp.IsSuccess() {
		return model.GitHubUser{}, errors.Errorf("github api error (%s): %s", resp.Status(), resp.String())
	}
	out := model.GitHubUser{Login: u.Login, AvatarURL: u.AvatarURL}
	if u.Name != nil {
		out.Name = *u.Name
	}
	return out, nil
}

func (c *Client) PRsToReview(ctx context.Context, login string) ([]model.PullRequest, error) {
	items, err := c.search(ctx, fmt.Sprintf("is:open is:pr review-requested:%s archived:false", login))
	if err != nil {
		return nil, err
	}
	return pullRequests(items), nil
}

func (c *Client) MyOpenPRs(ctx context.Context, login string) ([]model.PullRequest, error) {
	items, err := c.search(ctx, fmt.Sprintf("is:open is:pr author:%s archived:false", login))
	if err != nil {
		return nil, err
	}
	return pullRequests(items), nil
}

func (c *Client) MentionedIssues(ctx context.Context, login string) ([]model.Issue, error) {
	items, err := c.search(ctx, fmt.Sprintf("is:open mentions:%s archived:false", login))
	if err != nil {
		return nil, err
	}
	out := make([]model.Issue, 0, len(items))
	for _, item := range items {
		if item.kind() != kindIssue {
			continue
		}
		issue := model.Issue{
			ID:           item.ID,
			RepoFullName: extractRepo(item.HTMLURL),
			Number:       item.Number,
			Title:        item.Title,
			State:        item.State,
			UserLogin:    item.User.Login,
			HTMLURL:      item.HTMLURL,
			Labels:       labels(item.Labels),
		}
		if item.Body != nil {
			issue.BodyPreview = preview(*item.Body)
		}
		out = append(out, issue)
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var list []apiNotification
	resp, err := c.request(ctx).
		SetQueryParam("per_page", notificationPerPage).
		SetResult(&list).
		Get(notificationsPath)
	if err != nil {
		return nil, errors.Wrap(err, "error getting github notifications")
	}
	if !resp.IsSuccess() {
		log.Debug().Str("status", resp.Status()).Msg("github notifications unavailable")
		return []model.Notification{}, nil
	}
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		item := model.Notification{
			ID:           n.ID,
			RepoFullName: n.Repository.FullName,
			SubjectTitle: n.Subject.Title,
			SubjectType:  n.Subject.Type,
			Reason:       n.Reason,
			Unread:       n.Unread,
			UpdatedAt:    n.UpdatedAt,
		}
		if n.Subject.URL != nil {
			item.URL = convertAPIURL(*n.Subject.URL)
		}
		out = append(out, item)
	}
	return out, nil
}

// search runs an issue search. A non-2xx response yields no items and no error.
func (c *Client) search(ctx context.Context, query string) ([]apiIssue, error) {
	var result searchResult
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"sort":     "updated",
			"order":    "desc",
			"per_page": searchPerPage,
		}).
		SetResult(&result).
		Get(searchPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error searching github: %s", query)
	}
	if !resp.IsSuccess() {
		log.Debug().Str("status", resp.Status()).Str("query", query).Msg("github search unavailable")
		return nil, nil
	}
	return result.Items, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
}

func orEmpty[T any](list []T, err error) []T {
	if err != nil {
		log.Err(err).Str("source", Source).Msg("github query failed")
		return []T{}
	}
	if list == nil {
		return []T{}
	}
	return list
}

func pullRequests(items []apiIssue) []model.PullRequest {
	out := make([]model.PullRequest, 0, len(items))
	for _, item := range items {
		if item.kind() != kindPullRequest {
			continue
		}
		pr := model.PullRequest{
			ID:                 item.ID,
			RepoFullName:       extractRepo(item.HTMLURL),
			Number:             item.Number,
			Title:              item.Title,
			State:              item.State,
			UserLogin:          item.User.Login,
			UserAvatarURL:      item.User.AvatarURL,
			HTMLURL:            item.HTMLURL,
			CreatedAt:          item.CreatedAt,
			UpdatedAt:          item.UpdatedAt,
			RequestedReviewers: []string{},
			Labels:             labels(item.Labels),
		}
		if item.Draft != nil {
			pr.Draft = *item.Draft
		}
		out = append(out, pr)
	}
	return out
}

func labels(in []apiLabel) []model.GitHubLabel {
	out := make([]model.GitHubLabel, 0, len(in))
	for _, l := range in {
		out = append(out, model.GitHubLabel{Name: l.Name, Color: l.Color})
	}
	return out
}

// preview truncates body to previewLimit bytes including the ellipsis,
// backing off to a rune boundary.
func preview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	n := previewLimit - 3
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return body[:n] + "..."
}

// extractRepo returns owner/repo from https://github.com/owner/repo/...
func extractRepo(htmlURL string) string {
	parts := strings.Split(htmlURL, "/")
	if len(parts) < 5 {
		return ""
	}
	return parts[3] + "/" + parts[4]
}

// convertAPIURL maps https://api.github.com/repos/o/r/pulls/1 to https://github.com/o/r/pull/1.
func convertAPIURL(apiURL string) string {
	out := strings.Replace(apiURL, "api.github.com/repos", "github.com", 1)
	return strings.Replace(out, "/pulls/", "/pull/", 1)
}
