package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// ImageFilename is the filename attached to every uploaded post image.
const ImageFilename = "image.jpg"

// Post is a finished post as the posts API expects it.
type Post struct {
	PostID string // ISO-8601 timestamp, unique per submission
	Title  string
	Tag    string // category
	Body   string // the description field
	BodyUA string // generated text
	BodyEN string // translation
	BlogID string

	Image            []byte
	ImageContentType string
}

// FormField is one name/value pair of the multipart payload.
type FormField struct {
	Name  string
	Value string
}

// Fields returns the text fields of the payload in wire order.
func (p Post) Fields() []FormField {
	return []FormField{
		{"postID", p.PostID},
		{"title", p.Title},
		{"tag", p.Tag},
		{"post", p.Body},
		{"post_ua", p.BodyUA},
		{"post_en", p.BodyEN},
		{"bid", p.BlogID},
	}
}

// HasImage reports whether an image part is attached.
func (p Post) HasImage() bool {
	return len(p.Image) > 0
}

// Encode writes the multipart payload and returns its content type.
func (p Post) Encode(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range p.Fields() {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return "", err
		}
	}
	if p.HasImage() {
		ct := p.ImageContentType
		if ct == "" {
			ct = "image/jpeg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, ImageFilename))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(p.Image); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

// SubmitPost sends p to the posts API as multipart/form-data.
func (c *Client) SubmitPost(ctx context.Context, p Post) error {
	var body bytes.Buffer
	contentType, err := p.Encode(&body)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+postsPath, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ErrSubmit); err != nil {
		return err
	}
	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	c.logger.Debug("post saved", "postID", p.PostID, "blog", p.BlogID, "response_bytes", n)
	return nil
}
