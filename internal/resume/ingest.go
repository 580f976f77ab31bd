// Package resume parses uploaded resume PDFs and stores the original file.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"jobprep_backend/internal/apperrors"
)

const defaultContentType = "application/pdf"

type Upload struct {
	Text    string
	FileURL string
}

type Ingestor struct {
	store ObjectStore
	log   *slog.Logger
}

func NewIngestor(store ObjectStore, lgr *slog.Logger) *Ingestor {
	return &Ingestor{
		store: store,
		log:   lgr,
	}
}

// Ingest extracts the text of data and uploads it under a random
// "<uuid>.<ext>" key. Nothing is uploaded when the file cannot be parsed.
func (i *Ingestor) Ingest(ctx context.Context, filename, contentType string, data []byte) (Upload, error) {
	const op = "resume.Ingestor.Ingest"

	log := i.log.With(slog.String("op", op))

	text, err := ExtractText(data)
	if err != nil {
		log.Info("rejected upload", slog.String("filename", filename), slog.String("error", err.Error()))
		if errors.Is(err, ErrNotPDF) {
			return Upload{}, apperrors.Validation("Uploaded file is not a PDF")
		}
		return Upload{}, apperrors.Validation("Uploaded PDF could not be parsed")
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	key := objectKey(filename)

	fileURL, err := i.store.Put(ctx, key, contentType, data)
	if err != nil {
		return Upload{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("resume uploaded", slog.String("key", key), slog.Int("size", len(data)))

	return Upload{Text: text, FileURL: fileURL}, nil
}

func objectKey(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "pdf"
	}
	return uuid.NewString() + "." + ext
}
