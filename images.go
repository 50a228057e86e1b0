package pubcompose

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubcompose/compose"
)

// handlePhoto attaches an uploaded photo, cropped to the post square.
func (a *App) handlePhoto(c echo.Context) error {
	d, err := a.draft(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return redirectCompose(c, "No photo selected.")
	}
	if file.Size > a.Config.MaxUploadSize {
		return redirectCompose(c, fmt.Sprintf("Photo too large (max %dMB).", a.Config.MaxUploadSize>>20))
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, a.Config.MaxUploadSize))
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	err = d.LoadPhoto(c.Request().Context(), data)
	switch {
	case err == nil:
		a.Logger.Info("photo loaded", "draft", d.ID(), "name", file.Filename, "kb", len(data)/1024)
		return redirectCompose(c, "")
	case errors.Is(err, compose.ErrFormInvalid), errors.Is(err, compose.ErrSuperseded),
		errors.Is(err, compose.ErrClosed), errors.Is(err, compose.ErrBusy):
		return a.afterAction(c, err)
	default:
		return redirectCompose(c, "Invalid image: "+err.Error())
	}
}

// handlePreview serves the image attached to a draft.
func (a *App) handlePreview(c echo.Context) error {
	b, ok := a.Previews.Get(c.Param("token"))
	if !ok {
		return echo.ErrNotFound
	}
	return c.Blob(http.StatusOK, b.ContentType, b.Data)
}
