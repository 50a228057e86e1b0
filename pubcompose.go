// Package pubcompose is a post composition service for a blog network, built
// with Go, Echo, and templ. Writers fill a short form, have remote models
// generate, translate and illustrate the post, and submit it to the posts
// API.
//
// Each browser session owns one compose.Draft. The package wires the drafts
// to the remote API client, the sqlite catalog and submission ledger, the
// session and CSRF middleware, and the views.
package pubcompose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubcompose/compose"
	"github.com/eringen/pubcompose/remote"
	"github.com/eringen/pubcompose/views"
)

// ViewFuncs holds the templ components the handlers render. DefaultViews
// returns the stock set; WithViews replaces it.
type ViewFuncs struct {
	Compose     func(d views.ComposeData) templ.Component
	Ledger      func(d views.LedgerData) templ.Component
	Login       func(site views.SiteConfig, showError bool, csrfToken string) templ.Component
	NotFound    func(site views.SiteConfig) templ.Component
	ServerError func(site views.SiteConfig) templ.Component
}

// DefaultViews returns the components of the views package.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Compose:     views.ComposePage,
		Ledger:      views.Ledger,
		Login:       views.Login,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

// WithViews replaces the rendered components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// App is the central pubcompose application. It wires together the store,
// the catalog cache, the drafts, handlers and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Catalog  *CatalogCache
	Drafts   *DraftRegistry
	Previews *compose.PreviewStore
	PostIDs  *compose.PostIDClock
	Views    ViewFuncs
	Logger   *log.Logger

	services      compose.Services
	loginLimiter  *Limiter
	actionLimiter *Limiter
	customRoutes  []func(*App)
	initialized   bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
		Views:  DefaultViews(),
		Logger: log.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the store and sets up drafts, middleware and routes. Start
// calls it; tests call it directly and serve a.Echo.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pubcompose: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pubcompose: init store: %w", err)
	}
	a.Store = store
	a.Catalog = NewCatalogCache(a.Store, a.Config.CatalogTTL)

	if a.services == nil {
		a.services = remote.New(a.Config.APIURL,
			remote.WithTimeout(a.Config.APITimeout),
			remote.WithLogger(a.Logger.WithPrefix("remote")),
		)
	}

	a.Previews = compose.NewPreviewStore(previewPrefix)
	if a.PostIDs == nil {
		a.PostIDs = compose.NewPostIDClock(nil)
	}
	a.Drafts = NewDraftRegistry(a.newDraft, a.Config.DraftIdleTTL, a.Logger)
	a.Drafts.StartSweeper(sweepInterval(a.Config.DraftIdleTTL))

	a.loginLimiter = NewLimiter(5, time.Minute)
	a.actionLimiter = NewLimiter(a.Config.ActionLimit, a.Config.ActionWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr, "api", a.Config.APIURL)
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Logger.Info("shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/compose/")
	})
	e.GET("/login/", a.handleLoginPage)
	e.POST("/login/", a.handleLogin)
	e.POST("/logout/", a.handleLogout)

	g := e.Group("/compose", a.requireAccess)
	g.GET("/", a.handleCompose)
	g.POST("/field/", a.handleField)
	g.POST("/generate/", a.handleGenerate)
	g.POST("/text/", a.handleText)
	g.POST("/translation/", a.handleTranslation)
	g.POST("/photo/", a.handlePhoto)
	g.POST("/generate-image/", a.handleGenerateImage)
	g.POST("/submit/", a.handleSubmit)
	g.POST("/clear-error/", a.handleClearError)
	g.GET("/preview/:token", a.handlePreview)

	e.GET("/:blog/posts/", a.handleLedger, a.requireAccess)
	e.GET("/:blog/posts/feed.xml", a.handleLedgerFeed, a.requireAccess)
}

func (a *App) newDraft(id string) *compose.Draft {
	catalog, err := a.Catalog.Catalog()
	if err != nil {
		a.Logger.Error("load catalog", "err", err)
	}
	return compose.New(compose.Config{
		ID:                    id,
		Services:              a.services,
		Catalog:               catalog,
		Previews:              a.Previews,
		PostIDs:               a.PostIDs,
		Logger:                a.Logger,
		Placeholder:           a.Config.Placeholder,
		TranslatedPlaceholder: a.Config.TranslatedPlaceholder,
	})
}

func (a *App) site() views.SiteConfig {
	return views.SiteConfig{Name: a.Config.Name}
}

func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > 10*time.Minute {
		iv = 10 * time.Minute
	}
	return iv
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Drafts != nil {
		a.Drafts.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.actionLimiter != nil {
		a.actionLimiter.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
