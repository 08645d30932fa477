package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/api/response"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/logger"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
)

// ObjectHandler serves stored attachments at their public URL
type ObjectHandler struct {
	store    storage.ObjectStore
	logger   *slog.Logger
	security *logger.SecurityLogger
}

// NewObjectHandler creates a new ObjectHandler
func NewObjectHandler(store storage.ObjectStore, log *slog.Logger, sec *logger.SecurityLogger) *ObjectHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ObjectHandler{store: store, logger: log, security: sec}
}

// Public handles GET /object/public/:bucket/*
func (h *ObjectHandler) Public(c echo.Context) error {
	bucket := c.Param("bucket")
	objectPath, err := url.PathUnescape(c.Param("*"))
	if err != nil || objectPath == "" {
		return response.BadRequest(c, "invalid object path")
	}

	obj, err := h.store.Open(c.Request().Context(), bucket, objectPath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPathTraversal):
			if h.security != nil {
				h.security.PathTraversalAttempt(c.RealIP(), c.Request().URL.Path, objectPath)
			}
			return response.BadRequest(c, "invalid object path")
		case errors.Is(err, storage.ErrFileNotFound), errors.Is(err, storage.ErrInvalidBucket):
			return response.NotFound(c, "object not found")
		default:
			h.logger.Error("failed to open object",
				slog.String("bucket", bucket),
				slog.String("path", objectPath),
				slog.String("error", err.Error()),
			)
			return response.InternalError(c, "failed to retrieve object")
		}
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename=%q`, path.Base(objectPath)))
	if obj.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	if _, err := io.Copy(c.Response().Writer, obj.Body); err != nil {
		h.logger.Warn("object download interrupted", slog.String("path", objectPath), slog.String("error", err.Error()))
	}
	return nil
}
