package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubcompose/remote"
)

var testCatalog = Catalog{
	{ID: "b1", Title: "Travel notes", Tags: []string{"travel", "food"}},
	{ID: "b2", Title: "Gophers", Tags: []string{"go", "tooling"}},
}

// fakeServices records calls and delegates to optional hooks.
type fakeServices struct {
	mu         sync.Mutex
	predict    func(ctx context.Context, title, prePrompt string) (string, error)
	translate  func(ctx context.Context, text string) (string, error)
	image      func(ctx context.Context, prompt string) (string, error)
	submit     func(ctx context.Context, p remote.Post) error
	translated []string
	prompts    []string
	submitted  []remote.Post
}

func (f *fakeServices) Predict(ctx context.Context, title, prePrompt string) (string, error) {
	if f.predict != nil {
		return f.predict(ctx, title, prePrompt)
	}
	return "generated: " + prePrompt, nil
}

func (f *fakeServices) Translate(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.translated = append(f.translated, text)
	f.mu.Unlock()
	if f.translate != nil {
		return f.translate(ctx, text)
	}
	return "translated: " + text, nil
}

func (f *fakeServices) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.image != nil {
		return f.image(ctx, prompt)
	}
	return base64.StdEncoding.EncodeToString(redSquareJPEG(10)), nil
}

func (f *fakeServices) SubmitPost(ctx context.Context, p remote.Post) error {
	f.mu.Lock()
	f.submitted = append(f.submitted, p)
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(ctx, p)
	}
	return nil
}

func (f *fakeServices) translations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.translated...)
}

func redSquareJPEG(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func pngOf(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func newTestDraft(t *testing.T, svc Services, previews *PreviewStore) *Draft {
	t.Helper()
	d := New(Config{
		ID:       "test",
		Services: svc,
		Catalog:  testCatalog,
		Previews: previews,
		Logger:   log.New(io.Discard),
	})
	t.Cleanup(d.Close)
	return d
}

func fill(t *testing.T, d *Draft, title, blog, category, description string) {
	t.Helper()
	for id, v := range map[FieldID]string{
		FieldTitle: title, FieldBlog: blog, FieldCategory: category, FieldDescription: description,
	} {
		_, err := d.SetField(id, v)
		require.NoError(t, err)
	}
}

func validDraft(t *testing.T, svc Services) *Draft {
	t.Helper()
	d := newTestDraft(t, svc, NewPreviewStore("/p/"))
	fill(t, d, "Sunny", "b1", "travel", "a nice day")
	require.True(t, d.Valid())
	return d
}

func TestCategoriesFollowBlogField(t *testing.T) {
	d := newTestDraft(t, &fakeServices{}, nil)
	assert.Empty(t, d.Categories())

	_, err := d.SetField(FieldBlog, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "food"}, d.Categories())

	_, err = d.SetField(FieldCategory, "food")
	require.NoError(t, err)

	_, err = d.SetField(FieldBlog, "b2")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "tooling"}, d.Categories())
	// The previous choice is stale but kept.
	assert.Equal(t, "food", d.Field(FieldCategory).Value)

	_, err = d.SetField(FieldBlog, "unknown")
	require.NoError(t, err)
	assert.Empty(t, d.Categories())
}

func TestSetCatalogRederivesCategories(t *testing.T) {
	d := newTestDraft(t, &fakeServices{}, nil)
	_, err := d.SetField(FieldBlog, "b3")
	require.NoError(t, err)
	assert.Empty(t, d.Categories())

	d.SetCatalog(append(testCatalog, Blog{ID: "b3", Title: "New", Tags: []string{"news"}}))
	assert.Equal(t, []string{"news"}, d.Categories())
}

func TestWordCountTracksDescription(t *testing.T) {
	d := newTestDraft(t, &fakeServices{}, nil)
	_, err := d.SetField(FieldDescription, "  a  nice   day ")
	require.NoError(t, err)
	assert.Equal(t, 3, d.WordCount())
	_, err = d.SetField(FieldDescription, "")
	require.NoError(t, err)
	assert.Equal(t, 0, d.WordCount())
}

func TestActionsRequireValidForm(t *testing.T) {
	svc := &fakeServices{}
	d := newTestDraft(t, svc, nil)
	fill(t, d, "Sunny", "b1", "travel", "abc")

	assert.ErrorIs(t, d.GenerateText(context.Background()), ErrFormInvalid)
	assert.ErrorIs(t, d.GenerateImage(context.Background()), ErrFormInvalid)
	assert.ErrorIs(t, d.LoadPhoto(context.Background(), pngOf(10, 10)), ErrFormInvalid)
	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrFormInvalid)
	assert.Empty(t, svc.submitted)
}

func TestGenerateTextScenario(t *testing.T) {
	var predictBody, translateBody map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&predictBody)
		_, _ = io.WriteString(w, `{"predictions":[{"content":"Generated!"}]}`)
	})
	mux.HandleFunc("/api/translate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&translateBody)
		_, _ = io.WriteString(w, `{"translations":["Translated!"]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := validDraft(t, remote.New(srv.URL, remote.WithLogger(log.New(io.Discard))))
	assert.Equal(t, DefaultPlaceholder, d.Placeholder())

	require.NoError(t, d.GenerateText(context.Background()))

	assert.Equal(t, map[string]string{"title": "Sunny", "pre_prompt": "a nice day"}, predictBody)
	assert.Equal(t, "Generated!", d.GeneratedText())
	assert.Equal(t, map[string]string{"text": "Generated!"}, translateBody)
	assert.Equal(t, "Translated!", d.Translation())
	assert.False(t, d.Busy())
	assert.Equal(t, TranslatedPlaceholder, d.Placeholder())
	assert.Empty(t, d.TranslateError())
}

func TestGenerateTextFailureClearsBusy(t *testing.T) {
	svc := &fakeServices{predict: func(context.Context, string, string) (string, error) {
		return "", remote.ErrPredict
	}}
	d := validDraft(t, svc)

	err := d.GenerateText(context.Background())
	assert.ErrorIs(t, err, remote.ErrPredict)
	assert.Equal(t, remote.ErrPredict.Error(), d.TranslateError())
	assert.False(t, d.Busy())
	assert.Empty(t, svc.translations())
	assert.Equal(t, remote.ErrPredict.Error(), d.View().Error)

	d.ClearErrors()
	assert.Empty(t, d.View().Error)
}

func TestTranslateFailureStillFinishes(t *testing.T) {
	svc := &fakeServices{translate: func(context.Context, string) (string, error) {
		return "", remote.ErrTranslate
	}}
	d := validDraft(t, svc)

	err := d.GenerateText(context.Background())
	assert.ErrorIs(t, err, remote.ErrTranslate)
	assert.Equal(t, "generated: a nice day", d.GeneratedText())
	assert.Empty(t, d.Translation())
	assert.Equal(t, remote.ErrTranslate.Error(), d.TranslateError())
	assert.False(t, d.Busy())
	assert.Equal(t, TranslatedPlaceholder, d.Placeholder())
}

func TestSameGeneratedTextSkipsTranslation(t *testing.T) {
	svc := &fakeServices{}
	d := validDraft(t, svc)

	require.NoError(t, d.GenerateText(context.Background()))
	require.NoError(t, d.GenerateText(context.Background()))
	assert.Len(t, svc.translations(), 1)
	assert.False(t, d.Busy())
}

func TestEditingGeneratedTextTranslates(t *testing.T) {
	svc := &fakeServices{}
	d := newTestDraft(t, svc, nil)

	require.NoError(t, d.SetGeneratedText(context.Background(), "hand written"))
	assert.Equal(t, "translated: hand written", d.Translation())

	require.NoError(t, d.SetGeneratedText(context.Background(), "hand written"))
	require.NoError(t, d.SetGeneratedText(context.Background(), ""))
	assert.Equal(t, []string{"hand written"}, svc.translations())
	assert.Equal(t, "translated: hand written", d.Translation())

	require.NoError(t, d.SetTranslation("fixed by hand"))
	assert.Equal(t, "fixed by hand", d.Translation())
}

func TestGenerateImageStoresOriginalPayload(t *testing.T) {
	original := redSquareJPEG(10)
	var gotPrompt map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate-image", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotPrompt)
		_ = json.NewEncoder(w).Encode(map[string]string{"imageBase64": base64.StdEncoding.EncodeToString(original)})
	}))
	defer srv.Close()

	d := validDraft(t, remote.New(srv.URL, remote.WithLogger(log.New(io.Discard))))
	require.NoError(t, d.SetTranslation("sunset"))

	require.NoError(t, d.GenerateImage(context.Background()))
	assert.Equal(t, map[string]string{"prompt": "sunset"}, gotPrompt)

	img := d.Image()
	require.NotNil(t, img)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, original, img.Data)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Width)
	assert.False(t, d.Busy())
}

func TestGenerateImageFailureIsNotSurfaced(t *testing.T) {
	svc := &fakeServices{image: func(context.Context, string) (string, error) {
		return "", remote.ErrGenerateImage
	}}
	d := validDraft(t, svc)

	err := d.GenerateImage(context.Background())
	assert.ErrorIs(t, err, remote.ErrGenerateImage)
	assert.Nil(t, d.Image())
	assert.False(t, d.Busy())
	assert.Empty(t, d.TranslateError())
}

func TestLoadPhotoCropsAndScopesPreview(t *testing.T) {
	previews := NewPreviewStore("/p/")
	d := newTestDraft(t, &fakeServices{}, previews)
	fill(t, d, "Sunny", "b1", "travel", "a nice day")

	require.NoError(t, d.LoadPhoto(context.Background(), pngOf(1600, 900)))
	img := d.Image()
	require.NotNil(t, img)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 720, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 1, previews.Len())

	first := d.View().ImageURL
	assert.Contains(t, first, "/p/")

	require.NoError(t, d.LoadPhoto(context.Background(), pngOf(900, 1600)))
	assert.Equal(t, 1, previews.Len())
	assert.NotEqual(t, first, d.View().ImageURL)

	d.Close()
	assert.Equal(t, 0, previews.Len())
}

func TestLoadPhotoRejectsNonImage(t *testing.T) {
	d := validDraft(t, &fakeServices{})
	err := d.LoadPhoto(context.Background(), []byte("definitely not a picture"))
	require.Error(t, err)
	assert.Nil(t, d.Image())
}

func TestViewWithoutPreviewStoreUsesDataURL(t *testing.T) {
	d := newTestDraft(t, &fakeServices{}, nil)
	fill(t, d, "Sunny", "b1", "travel", "a nice day")
	assert.Equal(t, DefaultPlaceholder, d.View().ImageURL)

	require.NoError(t, d.LoadPhoto(context.Background(), pngOf(20, 20)))
	v := d.View()
	assert.True(t, v.HasImage)
	assert.Contains(t, v.ImageURL, "data:image/jpeg;base64,")
}

func TestSubmitPayload(t *testing.T) {
	svc := &fakeServices{}
	d := validDraft(t, svc)
	require.NoError(t, d.GenerateText(context.Background()))

	rc, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/b1/posts", rc.Redirect)
	require.Len(t, svc.submitted, 1)

	p := svc.submitted[0]
	assert.Equal(t, "Sunny", p.Title)
	assert.Equal(t, "travel", p.Tag)
	assert.Equal(t, "a nice day", p.Body)
	assert.Equal(t, "generated: a nice day", p.BodyUA)
	assert.Equal(t, "translated: generated: a nice day", p.BodyEN)
	assert.Equal(t, "b1", p.BlogID)
	assert.False(t, p.HasImage())
	assert.Len(t, p.Fields(), 7)

	_, err = time.Parse(time.RFC3339Nano, p.PostID)
	assert.NoError(t, err)
}

func TestSubmitIncludesImageWhenSelected(t *testing.T) {
	svc := &fakeServices{}
	d := validDraft(t, svc)
	require.NoError(t, d.LoadPhoto(context.Background(), pngOf(100, 100)))

	_, err := d.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, svc.submitted, 1)
	assert.True(t, svc.submitted[0].HasImage())
	assert.Equal(t, d.Image().Data, svc.submitted[0].Image)
}

func TestPostIDsAreDistinct(t *testing.T) {
	frozen := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := &fakeServices{}
	d := New(Config{
		Services: svc,
		Catalog:  testCatalog,
		Logger:   log.New(io.Discard),
		Now:      func() time.Time { return frozen },
	})
	defer d.Close()
	fill(t, d, "Sunny", "b1", "travel", "a nice day")

	for i := 0; i < 3; i++ {
		_, err := d.Submit(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, svc.submitted, 3)
	assert.Equal(t, "2024-01-15T10:00:00.000Z", svc.submitted[0].PostID)
	assert.Equal(t, "2024-01-15T10:00:00.001Z", svc.submitted[1].PostID)
	assert.Equal(t, "2024-01-15T10:00:00.002Z", svc.submitted[2].PostID)
}

func TestSubmitFailureSetsRequestError(t *testing.T) {
	svc := &fakeServices{submit: func(context.Context, remote.Post) error {
		return remote.ErrSubmit
	}}
	d := validDraft(t, svc)

	rc, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, remote.ErrSubmit)
	assert.Empty(t, rc.Redirect)
	assert.Equal(t, "b1", rc.Post.BlogID)
	assert.Equal(t, remote.ErrSubmit.Error(), d.RequestError())
	assert.Equal(t, remote.ErrSubmit.Error(), d.View().Error)
}

func TestEditSupersedesInFlightGeneration(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeServices{predict: func(context.Context, string, string) (string, error) {
		close(started)
		<-release
		return "late model output", nil
	}}
	d := validDraft(t, svc)

	errc := make(chan error, 1)
	go func() { errc <- d.GenerateText(context.Background()) }()
	<-started
	assert.True(t, d.Busy())
	assert.ErrorIs(t, d.GenerateImage(context.Background()), ErrBusy)

	require.NoError(t, d.SetGeneratedText(context.Background(), "my own words"))
	close(release)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Equal(t, "my own words", d.GeneratedText())
	assert.Equal(t, "translated: my own words", d.Translation())
	assert.False(t, d.Busy())
}

func TestStaleTranslationIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	svc := &fakeServices{translate: func(_ context.Context, text string) (string, error) {
		if text == "first" {
			close(firstStarted)
			<-releaseFirst
		}
		return "tr(" + text + ")", nil
	}}
	d := newTestDraft(t, svc, nil)

	errc := make(chan error, 1)
	go func() { errc <- d.SetGeneratedText(context.Background(), "first") }()
	<-firstStarted

	require.NoError(t, d.SetGeneratedText(context.Background(), "second"))
	close(releaseFirst)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Equal(t, "tr(second)", d.Translation())
	assert.False(t, d.Busy())
}

func TestPhotoSupersedesGeneratedImage(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeServices{image: func(context.Context, string) (string, error) {
		close(started)
		<-release
		return base64.StdEncoding.EncodeToString(redSquareJPEG(10)), nil
	}}
	d := validDraft(t, svc)

	errc := make(chan error, 1)
	go func() { errc <- d.GenerateImage(context.Background()) }()
	<-started

	require.NoError(t, d.LoadPhoto(context.Background(), pngOf(800, 800)))
	photo := d.Image()
	close(release)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Same(t, photo, d.Image())
	assert.False(t, d.Busy())
}

func TestCloseCancelsInFlightCalls(t *testing.T) {
	started := make(chan struct{})
	svc := &fakeServices{predict: func(ctx context.Context, _, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	d := validDraft(t, svc)

	errc := make(chan error, 1)
	go func() { errc <- d.GenerateText(context.Background()) }()
	<-started
	d.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("GenerateText did not return after Close")
	}

	_, err := d.SetField(FieldTitle, "x")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestPostIDsAreDistinctAcrossDrafts(t *testing.T) {
	frozen := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewPostIDClock(func() time.Time { return frozen })
	svc := &fakeServices{}

	for _, id := range []string{"first", "second"} {
		d := New(Config{
			ID:       id,
			Services: svc,
			Catalog:  testCatalog,
			PostIDs:  clock,
			Logger:   log.New(io.Discard),
		})
		fill(t, d, "Sunny", "b1", "travel", "a nice day")
		_, err := d.Submit(context.Background())
		require.NoError(t, err)
		d.Close()
	}

	require.Len(t, svc.submitted, 2)
	assert.Equal(t, "2024-01-15T10:00:00.000Z", svc.submitted[0].PostID)
	assert.Equal(t, "2024-01-15T10:00:00.001Z", svc.submitted[1].PostID)
}

func TestStartGenerateTextReturnsBeforeTheModel(t *testing.T) {
	release := make(chan struct{})
	svc := &fakeServices{predict: func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-release:
			return "background output", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	d := validDraft(t, svc)

	require.NoError(t, d.StartGenerateText())
	assert.True(t, d.Busy())
	assert.True(t, d.View().Busy)
	assert.ErrorIs(t, d.StartGenerateImage(), ErrBusy)

	close(release)
	require.Eventually(t, func() bool { return !d.Busy() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "background output", d.GeneratedText())
	assert.Equal(t, "translated: background output", d.Translation())
}

func TestStartGenerateChecksTheFormFirst(t *testing.T) {
	d := newTestDraft(t, &fakeServices{}, nil)
	assert.ErrorIs(t, d.StartGenerateText(), ErrFormInvalid)
	assert.ErrorIs(t, d.StartGenerateImage(), ErrFormInvalid)
	assert.False(t, d.Busy())
}

func TestStartGenerateImageAttaches(t *testing.T) {
	svc := &fakeServices{}
	d := validDraft(t, svc)

	require.NoError(t, d.StartGenerateImage())
	require.Eventually(t, func() bool { return d.Image() != nil && !d.Busy() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, redSquareJPEG(10), d.Image().Data)
}
