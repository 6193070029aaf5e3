package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/services"
	"github.com/charlesng35/internhub/internal/storage"
)

// UploadHandler streams stored resumes.
type UploadHandler struct {
	apps *services.ApplicationService
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(apps *services.ApplicationService) *UploadHandler {
	return &UploadHandler{apps: apps}
}

// GET /uploads/:filename
func (h *UploadHandler) Serve(c *gin.Context) {
	filename := c.Param("filename")
	object, err := h.apps.OpenResume(requestContext(c), identity(c).UserID, filename)
	if err != nil {
		pageError(c, err)
		return
	}
	defer object.Close()

	// The type is sniffed from content. The student controls the extension.
	head := make([]byte, storage.SniffBytes)
	n, err := io.ReadFull(object, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		pageError(c, err)
		return
	}
	head = head[:n]

	contentType, inline := storage.Disposition(head)
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}

	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, object.Size, contentType, io.MultiReader(bytes.NewReader(head), object), map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, filename),
	})
}
