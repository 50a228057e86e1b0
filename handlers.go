package pubcompose

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubcompose/compose"
	"github.com/eringen/pubcompose/views"
)

var formFields = []compose.FieldID{
	compose.FieldTitle,
	compose.FieldBlog,
	compose.FieldCategory,
	compose.FieldDescription,
}

// draft returns the draft of the session, starting a new one when the
// session has none or its draft expired.
func (a *App) draft(c echo.Context) (*compose.Draft, error) {
	if d, ok := a.Drafts.Get(sessionDraftID(c)); ok {
		return d, nil
	}
	d := a.Drafts.Create()
	if err := setSessionDraftID(c, d.ID()); err != nil {
		a.Drafts.Discard(d.ID())
		return nil, err
	}
	return d, nil
}

func (a *App) handleCompose(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	if catalog, err := a.Catalog.Catalog(); err != nil {
		a.Logger.Error("load catalog", "err", err)
	} else {
		d.SetCatalog(catalog)
	}
	return Render(c, a.Views.Compose(views.ComposeData{
		Site:   a.site(),
		View:   d.View(),
		CSRF:   CsrfToken(c),
		Notice: c.QueryParam("msg"),
	}))
}

// applyFields copies the posted form fields into the draft. Fields missing
// from the request are left untouched.
func applyFields(c echo.Context, d *compose.Draft) error {
	params, err := c.FormParams()
	if err != nil {
		return err
	}
	for _, id := range formFields {
		if _, ok := params[string(id)]; !ok {
			continue
		}
		if _, err := d.SetField(id, params.Get(string(id))); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) handleField(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	if err := applyFields(c, d); err != nil {
		return a.afterAction(c, err)
	}
	return redirectCompose(c, "")
}

func (a *App) handleGenerate(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	if err := applyFields(c, d); err != nil {
		return a.afterAction(c, err)
	}
	if !a.actionLimiter.Allow(d.ID()) {
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	return a.afterAction(c, d.StartGenerateText())
}

func (a *App) handleText(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	return a.afterAction(c, d.SetGeneratedText(c.Request().Context(), c.FormValue("generated_text")))
}

func (a *App) handleTranslation(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	return a.afterAction(c, d.SetTranslation(c.FormValue("translation")))
}

func (a *App) handleGenerateImage(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	if err := applyFields(c, d); err != nil {
		return a.afterAction(c, err)
	}
	if !a.actionLimiter.Allow(d.ID()) {
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	return a.afterAction(c, d.StartGenerateImage())
}

func (a *App) handleClearError(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	d.ClearErrors()
	return redirectCompose(c, "")
}

// handleSubmit sends the post. A sent post ends the draft and leads to the
// blog's posts page; a failed one stays in the composer with the error shown.
func (a *App) handleSubmit(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}
	if err := applyFields(c, d); err != nil {
		return a.afterAction(c, err)
	}
	rc, err := d.Submit(c.Request().Context())
	if rc.Post.PostID != "" {
		a.recordSubmission(rc, err)
	}
	if err != nil {
		return a.afterAction(c, err)
	}
	a.Drafts.Discard(d.ID())
	if err := setSessionDraftID(c, ""); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, rc.Redirect+"/")
}

func (a *App) recordSubmission(rc compose.Receipt, err error) {
	p := rc.Post
	sub := Submission{
		PostID:   p.PostID,
		BlogID:   p.BlogID,
		Title:    p.Title,
		Tag:      p.Tag,
		Post:     p.Body,
		PostUA:   p.BodyUA,
		PostEN:   p.BodyEN,
		HasImage: p.HasImage(),
		Status:   StatusSent,
	}
	if err != nil {
		sub.Status = StatusFailed
		sub.Error = err.Error()
	}
	if err := a.Store.RecordSubmission(sub); err != nil {
		a.Logger.Error("record submission", "postID", p.PostID, "err", err)
	}
}

// afterAction maps the outcome of a draft action to a redirect back to the
// composer. Remote failures are already stored on the draft (or only
// logged, for image generation), so they need no notice of their own.
func (a *App) afterAction(c echo.Context, err error) error {
	switch {
	case err == nil, errors.Is(err, compose.ErrSuperseded), errors.Is(err, compose.ErrClosed):
		return redirectCompose(c, "")
	case errors.Is(err, compose.ErrFormInvalid):
		return redirectCompose(c, "Fill in every field first.")
	case errors.Is(err, compose.ErrBusy):
		return redirectCompose(c, "A generation is already running.")
	case errors.Is(err, compose.ErrUnknownField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return redirectCompose(c, "")
}

func redirectCompose(c echo.Context, msg string) error {
	target := "/compose/"
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// handleLedger lists the posts submitted to a blog.
func (a *App) handleLedger(c echo.Context) error {
	blogID := c.Param("blog")
	blog, known, err := a.Catalog.Blog(blogID)
	if err != nil {
		return err
	}
	subs, err := a.Store.ListSubmissions(blogID)
	if err != nil {
		return err
	}
	if !known && len(subs) == 0 {
		return echo.ErrNotFound
	}
	entries := make([]views.LedgerEntry, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, views.LedgerEntry{
			PostID:      s.PostID,
			Title:       s.Title,
			Tag:         s.Tag,
			Post:        s.Post,
			HasImage:    s.HasImage,
			Status:      s.Status,
			Error:       s.Error,
			SubmittedAt: s.SubmittedAt,
		})
	}
	return Render(c, a.Views.Ledger(views.LedgerData{
		Site:      a.site(),
		BlogID:    blogID,
		BlogTitle: blog.Title,
		Entries:   entries,
		CSRF:      CsrfToken(c),
	}))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "uri", c.Request().RequestURI, "err", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
