package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF      = errors.New("file is not a PDF")
	ErrUnreadable  = errors.New("PDF could not be parsed")
	pdfMagicHeader = []byte("%PDF-")
)

// ExtractText returns the plain text of every page in document order.
func ExtractText(data []byte) (text string, err error) {
	const op = "resume.ExtractText"

	if !bytes.HasPrefix(data, pdfMagicHeader) {
		return "", ErrNotPDF
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%s: %w: %v", op, ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	return sb.String(), nil
}
