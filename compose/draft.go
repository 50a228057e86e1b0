// Package compose holds the state of a post being written: the form, the
// generated and translated text, the attached image and the submission.
//
// A Draft is safe for concurrent use. Remote calls run without holding the
// draft lock; each action slot hands out tickets so that a result arriving
// after a newer request for the same slot is discarded instead of applied.
package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/eringen/pubcompose/imageproc"
	"github.com/eringen/pubcompose/remote"
)

// Placeholders shown until an image is attached.
const (
	DefaultPlaceholder    = "https://picsum.photos/id/568/720/720"
	TranslatedPlaceholder = "https://picsum.photos/id/478/720/720"
)

var (
	// ErrFormInvalid is returned by actions that need every field valid.
	ErrFormInvalid = errors.New("compose: form is not valid")
	// ErrBusy is returned while a generation or translation is running.
	ErrBusy = errors.New("compose: generation already in progress")
	// ErrSuperseded is returned when a newer request replaced this one.
	ErrSuperseded = errors.New("compose: superseded by a newer request")
	// ErrClosed is returned once the draft has been closed.
	ErrClosed = errors.New("compose: draft closed")
)

// Services are the remote operations a draft depends on.
// *remote.Client implements it.
type Services interface {
	Predict(ctx context.Context, title, prePrompt string) (string, error)
	Translate(ctx context.Context, text string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	SubmitPost(ctx context.Context, p remote.Post) error
}

// Config carries the dependencies of a Draft.
type Config struct {
	ID       string
	Services Services
	Catalog  Catalog
	// Previews serves attached images. When nil, View falls back to data URLs.
	Previews *PreviewStore
	Logger   *log.Logger

	Placeholder           string
	TranslatedPlaceholder string

	// PostIDs numbers submissions. Drafts served by one process share it.
	// When nil, the draft gets its own clock reading Now.
	PostIDs *PostIDClock
	Now     func() time.Time
}

// Draft is one post being composed.
type Draft struct {
	id       string
	services Services
	previews *PreviewStore
	logger   *log.Logger
	postIDs  *PostIDClock

	translatedPlaceholder string

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	form        *Form
	catalog     Catalog
	categories  []string
	wordCount   int
	generated   string
	translation string
	image       *Blob
	preview     *Preview
	placeholder string

	generating  bool
	translating bool
	imaging     bool

	translateErr string
	requestErr   string

	seq sequencer
}

// New creates an empty draft.
func New(cfg Config) *Draft {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.PostIDs == nil {
		cfg.PostIDs = NewPostIDClock(cfg.Now)
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	if cfg.TranslatedPlaceholder == "" {
		cfg.TranslatedPlaceholder = TranslatedPlaceholder
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Draft{
		id:                    cfg.ID,
		services:              cfg.Services,
		previews:              cfg.Previews,
		logger:                cfg.Logger.With("draft", cfg.ID),
		postIDs:               cfg.PostIDs,
		translatedPlaceholder: cfg.TranslatedPlaceholder,
		ctx:                   ctx,
		cancel:                cancel,
		form:                  NewPostForm(),
		catalog:               cfg.Catalog,
		placeholder:           cfg.Placeholder,
	}
}

// ID returns the draft identifier.
func (d *Draft) ID() string { return d.id }

// SetCatalog replaces the blog catalog and re-derives the categories.
func (d *Draft) SetCatalog(c Catalog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catalog = c
	d.categories = c.Categories(d.form.Value(FieldBlog))
}

// SetField updates a form field. Changing the blog re-derives the category
// options; a previously chosen category is left as is.
func (d *Draft) SetField(id FieldID, value string) (Field, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Field{}, ErrClosed
	}
	fld, err := d.form.Set(id, value)
	if err != nil {
		return Field{}, err
	}
	switch id {
	case FieldBlog:
		d.categories = d.catalog.Categories(value)
	case FieldDescription:
		d.wordCount = WordCount(value)
	}
	return fld, nil
}

// Field returns the current state of a form field.
func (d *Draft) Field(id FieldID) Field {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form.Field(id)
}

// Valid reports the aggregate form validity.
func (d *Draft) Valid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form.Valid()
}

// Categories returns the category options for the selected blog.
func (d *Draft) Categories() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.categories...)
}

// WordCount returns the number of words in the description.
func (d *Draft) WordCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wordCount
}

// GeneratedText returns the generated (or edited) post text.
func (d *Draft) GeneratedText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generated
}

// Translation returns the translated text.
func (d *Draft) Translation() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.translation
}

// Image returns the attached image, if any.
func (d *Draft) Image() *Blob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.image
}

// Placeholder returns the image URL shown while no image is attached.
func (d *Draft) Placeholder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.placeholder
}

// Busy reports whether a generation, translation or image generation runs.
func (d *Draft) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busyLocked()
}

func (d *Draft) busyLocked() bool {
	return d.generating || d.translating || d.imaging
}

// TranslateError returns the last generation or translation failure.
func (d *Draft) TranslateError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.translateErr
}

// RequestError returns the last submission failure.
func (d *Draft) RequestError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requestErr
}

// ClearErrors dismisses both error slots.
func (d *Draft) ClearErrors() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.translateErr = ""
	d.requestErr = ""
}

// readyLocked checks the preconditions shared by the remote actions.
func (d *Draft) readyLocked(needIdle bool) error {
	switch {
	case d.closed:
		return ErrClosed
	case !d.form.Valid():
		return ErrFormInvalid
	case needIdle && d.busyLocked():
		return ErrBusy
	}
	return nil
}

// bind derives a context that is also cancelled when the draft closes.
func (d *Draft) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// GenerateText asks the text model for a post from the title and the
// description. A non-empty result that differs from the current text is
// translated before GenerateText returns.
func (d *Draft) GenerateText(ctx context.Context) error {
	run, err := d.beginText()
	if err != nil {
		return err
	}
	return run(ctx)
}

// StartGenerateText checks the form like GenerateText and then runs the
// generation in the background, bound to the lifetime of the draft.
func (d *Draft) StartGenerateText() error {
	run, err := d.beginText()
	if err != nil {
		return err
	}
	go run(d.ctx)
	return nil
}

func (d *Draft) beginText() (func(context.Context) error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(true); err != nil {
		return nil, err
	}
	d.generating = true
	d.translateErr = ""
	ticket := d.seq.next(SlotText)
	title := d.form.Value(FieldTitle)
	prePrompt := d.form.Value(FieldDescription)
	return func(ctx context.Context) error {
		return d.generateText(ctx, ticket, title, prePrompt)
	}, nil
}

func (d *Draft) generateText(ctx context.Context, ticket uint64, title, prePrompt string) error {
	ctx, cancel := d.bind(ctx)
	defer cancel()

	text, err := d.services.Predict(ctx, title, prePrompt)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.generating = false
	if !d.seq.current(SlotText, ticket) {
		d.mu.Unlock()
		d.logger.Debug("discarding superseded result", "slot", SlotText)
		return ErrSuperseded
	}
	if err != nil {
		d.translateErr = err.Error()
		d.mu.Unlock()
		d.logger.Error("generate text", "err", err)
		return err
	}
	tticket, start := d.setTextLocked(text)
	d.mu.Unlock()

	if !start {
		return nil
	}
	return d.translate(ctx, tticket, text)
}

// SetGeneratedText records a manual edit of the generated text. The edit
// wins over any generation still in flight and is translated when it
// changes the text to something non-empty.
func (d *Draft) SetGeneratedText(ctx context.Context, text string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.seq.next(SlotText)
	ticket, start := d.setTextLocked(text)
	d.mu.Unlock()

	if !start {
		return nil
	}
	ctx, cancel := d.bind(ctx)
	defer cancel()
	return d.translate(ctx, ticket, text)
}

// setTextLocked stores text and, when it changed to a non-empty value,
// reserves a translation ticket.
func (d *Draft) setTextLocked(text string) (uint64, bool) {
	changed := text != d.generated
	d.generated = text
	if !changed || text == "" {
		return 0, false
	}
	d.translating = true
	return d.seq.next(SlotTranslate), true
}

func (d *Draft) translate(ctx context.Context, ticket uint64, text string) error {
	out, err := d.services.Translate(ctx, text)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if !d.seq.current(SlotTranslate, ticket) {
		d.mu.Unlock()
		d.logger.Debug("discarding superseded result", "slot", SlotTranslate)
		return ErrSuperseded
	}
	d.translating = false
	d.placeholder = d.translatedPlaceholder
	if err != nil {
		d.translateErr = err.Error()
		d.mu.Unlock()
		d.logger.Error("translate", "err", err)
		return err
	}
	d.translation = out
	d.mu.Unlock()
	return nil
}

// SetTranslation records a manual edit of the translation. A translation
// still in flight is discarded.
func (d *Draft) SetTranslation(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.translation == text {
		return nil
	}
	d.seq.next(SlotTranslate)
	d.translating = false
	d.translation = text
	return nil
}

// LoadPhoto crops an uploaded picture to the post square and attaches it.
// The picture replaces any image still being generated.
func (d *Draft) LoadPhoto(ctx context.Context, data []byte) error {
	d.mu.Lock()
	if err := d.readyLocked(false); err != nil {
		d.mu.Unlock()
		return err
	}
	ticket := d.seq.next(SlotImage)
	d.mu.Unlock()

	out, err := imageproc.CropSquareJPEG(bytes.NewReader(data))
	if err != nil {
		d.logger.Warn("load photo", "err", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.seq.current(SlotImage, ticket) {
		return ErrSuperseded
	}
	d.setImageLocked(NewJPEG(out))
	return nil
}

// GenerateImage asks the image model for a picture of the translation.
//
// The 720x720 stretched rendition is computed and logged, but the payload
// as returned by the model is what gets attached.
func (d *Draft) GenerateImage(ctx context.Context) error {
	run, err := d.beginImage()
	if err != nil {
		return err
	}
	return run(ctx)
}

// StartGenerateImage is GenerateImage running in the background.
func (d *Draft) StartGenerateImage() error {
	run, err := d.beginImage()
	if err != nil {
		return err
	}
	go run(d.ctx)
	return nil
}

func (d *Draft) beginImage() (func(context.Context) error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(true); err != nil {
		return nil, err
	}
	d.imaging = true
	ticket := d.seq.next(SlotImage)
	prompt := d.translation
	return func(ctx context.Context) error {
		return d.generateImage(ctx, ticket, prompt)
	}, nil
}

func (d *Draft) generateImage(ctx context.Context, ticket uint64, prompt string) error {
	ctx, cancel := d.bind(ctx)
	defer cancel()

	blob, err := d.fetchImage(ctx, prompt)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.imaging = false
	if err != nil {
		d.mu.Unlock()
		d.logger.Error("generate image", "err", err)
		return err
	}
	if !d.seq.current(SlotImage, ticket) {
		d.mu.Unlock()
		d.logger.Debug("discarding superseded result", "slot", SlotImage)
		return ErrSuperseded
	}
	d.setImageLocked(blob)
	d.mu.Unlock()
	return nil
}

func (d *Draft) fetchImage(ctx context.Context, prompt string) (*Blob, error) {
	payload, err := d.services.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, err
	}
	data, err := imageproc.DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	blob := NewJPEG(data)
	d.logger.Info("generated image", "kb", float64(blob.Size())/1024, "type", blob.ContentType)

	resized, err := imageproc.StretchJPEG(data)
	if err != nil {
		d.logger.Warn("resize generated image", "err", err)
		return blob, nil
	}
	d.logger.Info("resized generated image", "mb", float64(len(resized))/(1<<20), "type", "image/jpeg")
	return blob, nil
}

// setImageLocked attaches b and swaps the preview handle, releasing the
// previous one.
func (d *Draft) setImageLocked(b *Blob) {
	d.image = b
	d.preview.Release()
	d.preview = nil
	if d.previews != nil {
		d.preview = d.previews.Acquire(b)
	}
}

// Receipt describes a submission attempt.
type Receipt struct {
	Post remote.Post
	// Redirect is the page to show after a successful submission.
	Redirect string
}

// Submit sends the post to the posts API.
func (d *Draft) Submit(ctx context.Context) (Receipt, error) {
	d.mu.Lock()
	if err := d.readyLocked(false); err != nil {
		d.mu.Unlock()
		return Receipt{}, err
	}
	ticket := d.seq.next(SlotSubmit)
	post := d.postLocked()
	d.mu.Unlock()

	ctx, cancel := d.bind(ctx)
	defer cancel()

	rc := Receipt{Post: post}
	if err := d.services.SubmitPost(ctx, post); err != nil {
		d.mu.Lock()
		if !d.closed && d.seq.current(SlotSubmit, ticket) {
			d.requestErr = err.Error()
		}
		d.mu.Unlock()
		d.logger.Error("submit post", "postID", post.PostID, "err", err)
		return rc, err
	}
	rc.Redirect = PostsPath(post.BlogID)
	d.logger.Info("post submitted", "postID", post.PostID, "blog", post.BlogID, "image", post.HasImage())
	return rc, nil
}

func (d *Draft) postLocked() remote.Post {
	p := remote.Post{
		PostID: d.postIDs.Next(),
		Title:  d.form.Value(FieldTitle),
		Tag:    d.form.Value(FieldCategory),
		Body:   d.form.Value(FieldDescription),
		BodyUA: d.generated,
		BodyEN: d.translation,
		BlogID: d.form.Value(FieldBlog),
	}
	if d.image != nil {
		p.Image = d.image.Data
		p.ImageContentType = d.image.ContentType
	}
	return p
}

// PostsPath is the listing page of a blog.
func PostsPath(blogID string) string {
	return "/" + url.PathEscape(blogID) + "/posts"
}

// View is a consistent snapshot of the draft for rendering.
type View struct {
	Fields        map[FieldID]Field
	Valid         bool
	Blogs         Catalog
	Categories    []string
	WordCount     int
	GeneratedText string
	Translation   string
	ImageURL      string
	HasImage      bool
	Busy          bool
	Error         string
}

// CanGenerate reports whether text or image generation may start.
func (v View) CanGenerate() bool { return v.Valid && !v.Busy }

// CanSubmit reports whether the post may be submitted or a photo loaded.
func (v View) CanSubmit() bool { return v.Valid }

// View snapshots the draft.
func (d *Draft) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := View{
		Fields:        d.form.Fields(),
		Valid:         d.form.Valid(),
		Blogs:         append(Catalog(nil), d.catalog...),
		Categories:    append([]string(nil), d.categories...),
		WordCount:     d.wordCount,
		GeneratedText: d.generated,
		Translation:   d.translation,
		ImageURL:      d.placeholder,
		Busy:          d.busyLocked(),
		Error:         d.requestErr,
	}
	if v.Error == "" {
		v.Error = d.translateErr
	}
	if d.image != nil {
		v.HasImage = true
		if d.preview != nil {
			v.ImageURL = d.preview.URL
		} else {
			v.ImageURL = "data:" + d.image.ContentType + ";base64," + base64.StdEncoding.EncodeToString(d.image.Data)
		}
	}
	return v
}

// Close cancels in-flight calls and releases the image preview.
func (d *Draft) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.preview.Release()
	d.preview = nil
	d.mu.Unlock()
	d.cancel()
}
