package views

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// html accumulates markup and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

// text writes s escaped for element content and attribute values.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) attr(name, value string) {
	h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func (h *html) flag(name string, on bool) {
	if on {
		h.raw(" ", name)
	}
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

func csrfField(h *html, token string) {
	h.raw(`<input type="hidden" name="_csrf"`)
	h.attr("value", token)
	h.raw(">")
}

func itoa(n int) string { return strconv.Itoa(n) }

// excerpt shortens s to at most n runes on a word boundary.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
