package model

type GitHubUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name,omitempty"`
}

type GitHubLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type PullRequest struct {
	ID                 int64         `json:"id"`
	RepoFullName       string        `json:"repo_full_name"`
	Number             int           `json:"number"`
	Title              string        `json:"title"`
	State              string        `json:"state"`
	Draft              bool          `json:"draft"`
	UserLogin          string        `json:"user_login"`
	UserAvatarURL      string        `json:"user_avatar_url,omitempty"`
	HTMLURL            string        `json:"html_url"`
	CreatedAt          string        `json:"created_at"`
	UpdatedAt          string        `json:"updated_at"`
	RequestedReviewers []string      `json:"requested_reviewers"`
	Labels             []GitHubLabel `json:"labels"`
	ReviewStatus       string        `json:"review_status,omitempty"`
}

type Issue struct {
	ID           int64         `json:"id"`
	RepoFullName string        `json:"repo_full_name"`
	Number       int           `json:"number"`
	Title        string        `json:"title"`
	State        string        `json:"state"`
	UserLogin    string        `json:"user_login"`
	HTMLURL      string        `json:"html_url"`
	BodyPreview  string        `json:"body_preview,omitempty"`
	Labels       []GitHubLabel `json:"labels"`
}

type Notification struct {
	ID           string `json:"id"`
	RepoFullName string `json:"repo_full_name"`
	SubjectTitle string `json:"subject_title"`
	SubjectType  string `json:"subject_type"`
	Reason       string `json:"reason"`
	Unread       bool   `json:"unread"`
	UpdatedAt    string `json:"updated_at"`
	URL          string `json:"url,omitempty"`
}

// GitHubBrief is the code-review payload of the brief.
// LastUpdated is nil until the first successful fetch.
type GitHubBrief struct {
	User            *GitHubUser    `json:"user,omitempty"`
	PRsToReview     []PullRequest  `json:"prs_to_review"`
	MyOpenPRs       []PullRequest  `json:"my_open_prs"`
	MentionedIssues []Issue        `json:"mentioned_issues"`
	Notifications   []Notification `json:"notifications"`
	LastUpdated     *int64         `json:"last_updated"`
}

// EmptyGitHubBrief returns a brief with non-nil empty lists.
func EmptyGitHubBrief() GitHubBrief {
	return GitHubBrief{
		PRsToReview:     []PullRequest{},
		MyOpenPRs:       []PullRequest{},
		MentionedIssues: []Issue{},
		Notifications:   []Notification{},
	}
}
