package github

import "encoding/json"

type apiUser struct {
	Login     string  `json:"login"`
	AvatarURL string  `json:"avatar_url"`
	Name      *string `json:"name"`
}

type apiLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type itemKind int

const (
	kindIssue itemKind = iota
	kindPullRequest
)

// apiIssue is one item of /search/issues. The search endpoint returns issues
// and pull requests in the same shape; PullRequest is only present on the latter.
type apiIssue struct {
	ID          int64           `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	Body        *string         `json:"body"`
	Draft       *bool           `json:"draft"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	User        apiUser         `json:"user"`
	Labels      []apiLabel      `json:"labels"`
	PullRequest json.RawMessage `json:"pull_request"`
}

func (i apiIssue) kind() itemKind {
	if len(i.PullRequest) == 0 || string(i.PullRequest) == "null" {
		return kindIssue
	}
	return kindPullRequest
}

type searchResult struct {
	TotalCount int        `json:"total_count"`
	Items      []apiIssue `json:"items"`
}

type apiRepository struct {
	FullName string `json:"full_name"`
}

type apiSubject struct {
	Title string  `json:"title"`
	Type  string  `json:"type"`
	URL   *string `json:"url"`
}

type apiNotification struct {
	ID         string        `json:"id"`
	Reason     string        `json:"reason"`
	Unread     bool          `json:"unread"`
	UpdatedAt  string        `json:"updated_at"`
	Repository apiRepository `json:"repository"`
	Subject    apiSubject    `json:"subject"`
}
