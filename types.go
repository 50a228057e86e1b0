package pubcompose

// Submission statuses recorded in the ledger.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Submission is one post handed to the posts API, as recorded locally.
type Submission struct {
	PostID      string
	BlogID      string
	Title       string
	Tag         string
	Post        string
	PostUA      string
	PostEN      string
	HasImage    bool
	Status      string
	Error       string
	SubmittedAt string // RFC 3339
}
