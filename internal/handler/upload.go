package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	uploadField    = "pdf_file"
	maxUploadBytes = 10 << 20
)

type uploadResponse struct {
	Message string `json:"message"`
	Text    string `json:"text"`
	FileURL string `json:"file_url"`
}

// POST /pdf_parser/upload
func (h *Handler) UploadResume(c *gin.Context) {
	const op = "handler.UploadResume"

	log := h.log.With(slog.String("op", op))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			newErrorResponse(c, http.StatusRequestEntityTooLarge, "Uploaded file is too large")

			return
		}
		newErrorResponse(c, http.StatusBadRequest, "field 'pdf_file' is required")

		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, log, err)

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, log, err)

		return
	}

	log.Info("received file", slog.String("filename", fileHeader.Filename), slog.Int64("size", fileHeader.Size))

	upload, err := h.ingestor.Ingest(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Message: "PDF parsed and uploaded successfully",
		Text:    upload.Text,
		FileURL: upload.FileURL,
	})
}
