package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Ledger lists the posts submitted to a blog.
func Ledger(d LedgerData) templ.Component {
	title := d.BlogTitle
	if title == "" {
		title = d.BlogID
	}
	return Layout(d.Site, title, 0, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>`)
		h.text(title)
		h.raw(`</h1>`)
		if len(d.Entries) == 0 {
			h.raw(`<p>No posts submitted yet.</p>`)
		} else {
			h.raw(`<table><thead><tr><th>Post</th><th>Title</th><th>Category</th><th>Excerpt</th><th>Image</th><th>Status</th></tr></thead><tbody>`)
			for _, e := range d.Entries {
				h.raw(`<tr><td><time`)
				h.attr("datetime", e.SubmittedAt)
				h.raw(`>`)
				h.text(e.PostID)
				h.raw(`</time></td><td>`)
				h.text(e.Title)
				h.raw(`</td><td>`)
				h.text(e.Tag)
				h.raw(`</td><td>`)
				h.text(excerpt(e.Post, 80))
				h.raw(`</td><td>`)
				if e.HasImage {
					h.raw(`yes`)
				}
				h.raw(`</td><td`)
				if e.Error != "" {
					h.attr("title", e.Error)
				}
				h.raw(`>`)
				h.text(e.Status)
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`<p><a href="/compose/">Write another post</a></p>`)
		return h.err
	}))
}
