package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/pubcompose/compose"
)

// ComposePage renders the post composer. While a generation runs the page
// polls by reloading itself.
func ComposePage(d ComposeData) templ.Component {
	refresh := 0
	if d.View.Busy {
		refresh = 2
	}
	return Layout(d.Site, "New post", refresh, Composer(d))
}

// Composer is the compose form, the text editors, the image slot and the
// error modal.
func Composer(d ComposeData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		v := d.View
		h.raw(`<h1>New post</h1>`)
		if d.Notice != "" {
			h.raw(`<p class="notice" role="status">`)
			h.text(d.Notice)
			h.raw(`</p>`)
		}
		if v.Busy {
			h.raw(`<p class="spinner" role="status">Working…</p>`)
		}

		h.raw(`<div class="row"><form id="post" method="post" action="/compose/field/">`)
		csrfField(h, d.CSRF)
		textInput(h, "Title", v.Fields[compose.FieldTitle], string(compose.FieldTitle))
		blogSelect(h, v)
		categorySelect(h, v)

		desc := v.Fields[compose.FieldDescription]
		h.raw(`<label>Description <textarea name="description"`)
		invalid(h, desc)
		h.raw(`>`)
		h.text(desc.Value)
		h.raw(`</textarea></label><small>`)
		h.text(itoa(v.WordCount))
		if v.WordCount == 1 {
			h.raw(` word</small>`)
		} else {
			h.raw(` words</small>`)
		}

		h.raw(`<div class="actions"><button type="submit">Update</button>`)
		action(h, "/compose/generate/", "Generate text", v.CanGenerate())
		action(h, "/compose/generate-image/", "Generate image", v.CanGenerate())
		action(h, "/compose/submit/", "Submit", v.CanSubmit())
		h.raw(`</div></form>`)

		h.raw(`<div><img class="preview" alt="Post image"`)
		h.attr("src", v.ImageURL)
		h.raw(`><form method="post" action="/compose/photo/" enctype="multipart/form-data">`)
		csrfField(h, d.CSRF)
		h.raw(`<label>Photo <input type="file" name="photo" accept="image/*"></label><div class="actions">`)
		action(h, "/compose/photo/", "Load photo", v.CanSubmit())
		h.raw(`</div></form></div></div>`)

		editor(h, d.CSRF, "/compose/text/", "generated_text", "Generated text", v.GeneratedText, "Save text")
		editor(h, d.CSRF, "/compose/translation/", "translation", "Translation", v.Translation, "Save translation")

		if v.Error != "" {
			h.render(ctx, ErrorModal(v.Error, d.CSRF))
		}
		return h.err
	})
}

// ErrorModal shows a failed generation, translation or submission.
func ErrorModal(msg, csrf string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="modal" role="alertdialog" aria-labelledby="modal-title"><div>`)
		h.raw(`<h2 id="modal-title">Error</h2><p>`)
		h.text(msg)
		h.raw(`</p><form method="post" action="/compose/clear-error/">`)
		csrfField(h, csrf)
		h.raw(`<button type="submit">Close</button></form></div></div>`)
		return h.err
	})
}

func invalid(h *html, f compose.Field) {
	if !f.Valid {
		h.raw(` class="invalid" aria-invalid="true"`)
	}
}

func textInput(h *html, label string, f compose.Field, name string) {
	h.raw(`<label>`)
	h.text(label)
	h.raw(` <input type="text"`)
	h.attr("name", name)
	h.attr("value", f.Value)
	invalid(h, f)
	h.raw(`></label>`)
}

func blogSelect(h *html, v compose.View) {
	f := v.Fields[compose.FieldBlog]
	h.raw(`<label>Blog <select name="blog"`)
	invalid(h, f)
	h.raw(`><option value="">Choose a blog</option>`)
	for _, b := range v.Blogs {
		option(h, b.ID, b.Title, b.ID == f.Value)
	}
	h.raw(`</select></label>`)
}

func categorySelect(h *html, v compose.View) {
	f := v.Fields[compose.FieldCategory]
	h.raw(`<label>Category <select name="category"`)
	invalid(h, f)
	h.raw(`><option value="">Choose a category</option>`)
	found := false
	for _, c := range v.Categories {
		option(h, c, c, c == f.Value)
		found = found || c == f.Value
	}
	// A category picked for a previously selected blog stays selected.
	if !found && f.Value != "" {
		option(h, f.Value, f.Value, true)
	}
	h.raw(`</select></label>`)
}

func option(h *html, value, label string, selected bool) {
	h.raw(`<option`)
	h.attr("value", value)
	h.flag("selected", selected)
	h.raw(`>`)
	h.text(label)
	h.raw(`</option>`)
}

func action(h *html, path, label string, enabled bool) {
	h.raw(`<button type="submit"`)
	h.attr("formaction", path)
	h.flag("disabled", !enabled)
	h.raw(`>`)
	h.text(label)
	h.raw(`</button>`)
}

func editor(h *html, csrf, path, name, label, value, button string) {
	h.raw(`<form method="post"`)
	h.attr("action", path)
	h.raw(`>`)
	csrfField(h, csrf)
	h.raw(`<label>`)
	h.text(label)
	h.raw(` <textarea`)
	h.attr("name", name)
	h.raw(`>`)
	h.text(value)
	h.raw(`</textarea></label><div class="actions"><button type="submit">`)
	h.text(button)
	h.raw(`</button></div></form>`)
}
