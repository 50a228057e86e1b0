package pubcompose

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// handleLedgerFeed serves the sent submissions of a blog as RSS.
func (a *App) handleLedgerFeed(c echo.Context) error {
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
	title := blog.Title
	if title == "" {
		title = blogID
	}

	link := BuildURL(a.Config.URL, blogID, "posts")
	items := make([]rssItem, 0, len(subs))
	for _, s := range subs {
		if s.Status != StatusSent {
			continue
		}
		pubDate := ""
		if t, err := time.Parse(time.RFC3339, s.SubmittedAt); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		items = append(items, rssItem{
			Title:       s.Title,
			Link:        link,
			Description: s.Post,
			Category:    s.Tag,
			PubDate:     pubDate,
			GUID:        blogID + "/" + s.PostID,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       title + " | " + a.Config.Name,
			Link:        link,
			Description: "Posts submitted to " + title,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}
