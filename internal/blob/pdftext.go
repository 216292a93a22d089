package blob

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTextBytes bounds how much attachment text is fed to summarization.
const maxTextBytes = 1 << 20

// Text returns the plain-text content of a stored attachment. PDF
// attachments are extracted page by page; everything else is read as
// UTF-8 text. Output is capped at 1MB.
func (s *DiskStore) Text(key string) (string, error) {
	if strings.EqualFold(filepath.Ext(key), ".pdf") {
		return s.pdfText(key)
	}

	rc, err := s.Open(key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("reading attachment text: %w", err)
	}
	return string(data), nil
}

func (s *DiskStore) pdfText(key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, maxTextBytes)); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
