package remote

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost() Post {
	return Post{
		PostID: "2024-01-15T10:00:00.000Z",
		Title:  "Sunny",
		Tag:    "travel",
		Body:   "a nice day",
		BodyUA: "Generated!",
		BodyEN: "Translated!",
		BlogID: "b1",
	}
}

func TestSubmitPostWithoutImage(t *testing.T) {
	var form map[string][]string
	var files int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm.Value
		files = len(r.MultipartForm.File)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	require.NoError(t, c.SubmitPost(context.Background(), samplePost()))
	assert.Equal(t, map[string][]string{
		"postID":  {"2024-01-15T10:00:00.000Z"},
		"title":   {"Sunny"},
		"tag":     {"travel"},
		"post":    {"a nice day"},
		"post_ua": {"Generated!"},
		"post_en": {"Translated!"},
		"bid":     {"b1"},
	}, form)
	assert.Zero(t, files)
}

func TestSubmitPostWithImage(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.Value, 7)
		fh := r.MultipartForm.File["image"]
		require.Len(t, fh, 1)
		assert.Equal(t, "image.jpg", fh[0].Filename)
		assert.Equal(t, "image/jpeg", fh[0].Header.Get("Content-Type"))
		f, err := fh[0].Open()
		require.NoError(t, err)
		defer f.Close()
		got, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, img, got)
	})

	p := samplePost()
	p.Image = img
	require.NoError(t, c.SubmitPost(context.Background(), p))
}

func TestSubmitPostFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	})

	err := c.SubmitPost(context.Background(), samplePost())
	assert.ErrorIs(t, err, ErrSubmit)
}

func TestPostFieldsOrder(t *testing.T) {
	var names []string
	for _, f := range samplePost().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"postID", "title", "tag", "post", "post_ua", "post_en", "bid"}, names)
}
