package pubcompose

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/eringen/pubcompose/compose"
	"github.com/eringen/pubcompose/remote"
)

// SiteConfig holds all configuration for a pubcompose server.
type SiteConfig struct {
	Name string // Site name shown in page titles (default "Compose")
	Addr string // Listen address (default ":3000")
	URL  string // Public base URL used in feeds (default "http://localhost:3000")

	DatabasePath string // SQLite path (default "data/pubcompose.db")

	APIURL     string        // Base URL of the generation and posts APIs (default "http://localhost:5000")
	APITimeout time.Duration // Per-request timeout for remote calls (default 2min)

	AccessPassword string // Optional: when set, composing requires logging in
	SessionSecret  string // Required: session encryption secret
	CookieSecure   bool   // Set true for HTTPS

	CatalogTTL   time.Duration // Blog catalog cache TTL (default 5min)
	DraftIdleTTL time.Duration // Drafts untouched this long are discarded (default 12h)

	ActionLimit  int           // Remote actions allowed per draft per window (default 30)
	ActionWindow time.Duration // (default 1min)

	Placeholder           string // Image shown before anything is generated
	TranslatedPlaceholder string // Image shown once a translation completed

	MaxUploadSize int64 // Largest accepted photo upload in bytes (default 10MB)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Compose"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pubcompose.db"
	}
	if c.APIURL == "" {
		c.APIURL = "http://localhost:5000"
	}
	if c.APITimeout == 0 {
		c.APITimeout = remote.DefaultTimeout
	}
	if c.CatalogTTL == 0 {
		c.CatalogTTL = 5 * time.Minute
	}
	if c.DraftIdleTTL == 0 {
		c.DraftIdleTTL = 12 * time.Hour
	}
	if c.ActionLimit == 0 {
		c.ActionLimit = 30
	}
	if c.ActionWindow == 0 {
		c.ActionWindow = time.Minute
	}
	if c.Placeholder == "" {
		c.Placeholder = compose.DefaultPlaceholder
	}
	if c.TranslatedPlaceholder == "" {
		c.TranslatedPlaceholder = compose.TranslatedPlaceholder
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 10 << 20
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the logger shared by the server, the drafts and the
// remote client.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithServices replaces the remote API client, e.g. with a fake in tests.
func WithServices(s compose.Services) Option {
	return func(a *App) {
		a.services = s
	}
}

// NewLogger builds the logger used across the server. Level names are those
// accepted by charmbracelet/log ("debug", "info", "warn", "error").
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
		Prefix:          "pubcompose",
	}), nil
}
