package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const styles = `body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}
label{display:block;margin-top:.75rem}input,select,textarea{width:100%;box-sizing:border-box}
textarea{min-height:8rem}.invalid{border-color:#c00}.row{display:flex;gap:1rem}.row>*{flex:1}
.actions{margin-top:1rem;display:flex;gap:.5rem}.modal{position:fixed;inset:0;background:#0008;display:flex;align-items:center;justify-content:center}
.modal>div{background:#fff;padding:1.5rem;max-width:30rem}.spinner{font-style:italic}
img.preview{width:360px;height:360px;object-fit:cover}`

// Layout wraps body in the page shell. When refresh is positive the page
// reloads itself after that many seconds.
func Layout(site SiteConfig, title string, refresh int, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		if refresh > 0 {
			h.raw(`<meta http-equiv="refresh"`)
			h.attr("content", itoa(refresh))
			h.raw(">")
		}
		h.raw("<title>")
		if title != "" {
			h.text(title)
			h.raw(" | ")
		}
		h.text(site.Name)
		h.raw("</title><style>", styles, "</style></head><body>")
		h.raw(`<header><a href="/compose/">`)
		h.text(site.Name)
		h.raw("</a></header><main>")
		h.render(ctx, body)
		h.raw("</main></body></html>")
		return h.err
	})
}

// NotFound is the 404 page.
func NotFound(site SiteConfig) templ.Component {
	return Layout(site, "Not found", 0, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Not found</h1><p>The page you asked for does not exist. <a href="/compose/">Back to compose</a></p>`)
		return h.err
	}))
}

// ServerError is the 500 page.
func ServerError(site SiteConfig) templ.Component {
	return Layout(site, "Error", 0, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Something went wrong</h1><p>Please try again in a moment.</p>`)
		return h.err
	}))
}

// Login is the access form shown when compose requires a password.
func Login(site SiteConfig, showError bool, csrf string) templ.Component {
	return Layout(site, "Log in", 0, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Log in</h1>`)
		if showError {
			h.raw(`<p class="error" role="alert">Wrong password.</p>`)
		}
		h.raw(`<form method="post" action="/login/">`)
		csrfField(h, csrf)
		h.raw(`<label>Password <input type="password" name="password" autofocus required></label>`)
		h.raw(`<div class="actions"><button type="submit">Log in</button></div></form>`)
		return h.err
	}))
}
