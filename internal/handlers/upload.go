package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mrbooking/backend/internal/logging"
	"github.com/mrbooking/backend/internal/response"
)

const maxUploadSize = 10 << 20

// FileUploader is satisfied by the S3 uploader.
type FileUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

type UploadHandler struct {
	Uploader FileUploader
}

// Upload accepts a multipart image and returns the stored file URL for
// use as an avatar.
func (h *UploadHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file required")
	}
	if fileHeader.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "file too large")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "only image files are allowed")
	}

	src, err := fileHeader.Open()
	if err != nil {
		l.Error("upload_failed", "reason", "cannot open file", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "upload failed")
	}
	defer src.Close()

	url, err := h.Uploader.Upload(ctx, fileHeader.Filename, contentType, src)
	if err != nil {
		l.Error("upload_failed", "reason", "storage_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "upload failed")
	}

	l.Info("upload_success", "url", url)
	return response.OK(c, url)
}
