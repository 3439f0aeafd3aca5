package handlers

import (
	"bytes"
	"image"
	"io"
	"log/slog"
	"net/http"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gin-gonic/gin"
)

// maxFrameBytes bounds uploaded frame size.
const maxFrameBytes = 10 << 20

// Scan handles POST /api/v1/scan. The body is a multipart upload with a
// single "file" field holding a captured or uploaded frame. One request is
// one independent attempt: the live-camera client posts a frame per poll
// tick, the upload client posts exactly one.
func (h *Handlers) Scan(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxFrameBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "frame too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read frame"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxFrameBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read frame"})
		return
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image format"})
		return
	}

	result, err := h.pipeline.ProcessFrame(c.Request.Context(), img, raw)
	if err != nil {
		slog.Error("Scan pipeline failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
