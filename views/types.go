package views

import "github.com/eringen/pubcompose/compose"

// SiteConfig holds site-wide settings passed to every page.
type SiteConfig struct {
	Name string
}

// ComposeData is everything the compose page renders.
type ComposeData struct {
	Site SiteConfig
	View compose.View
	CSRF string
	// Notice is a one-off message shown above the form, e.g. a rejected upload.
	Notice string
}

// LedgerEntry is one row of a blog's submission ledger.
type LedgerEntry struct {
	PostID      string
	Title       string
	Tag         string
	Post        string
	HasImage    bool
	Status      string
	Error       string
	SubmittedAt string
}

// LedgerData is the posts page of a blog.
type LedgerData struct {
	Site      SiteConfig
	BlogID    string
	BlogTitle string
	Entries   []LedgerEntry
	CSRF      string
}
