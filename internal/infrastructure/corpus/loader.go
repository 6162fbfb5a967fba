// Package corpus loads the document collection the harness retrieves
// over. Each file in the corpus directory becomes one document whose id
// is the file name without its extension.
package corpus

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

func Load(dir string) (*domain.Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load corpus", fmt.Errorf("read corpus dir: %w", err))
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		var content string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
			content, err = readTextFile(path)
		case ".pdf":
			content, err = readPDFFile(path)
		default:
			slog.Debug("skipping unsupported corpus file", "file", name)
			continue
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "load corpus", fmt.Errorf("%s: %w", name, err))
		}

		content = strings.TrimSpace(content)
		if content == "" {
			slog.Warn("corpus file has no extractable text", "file", name)
			continue
		}

		docs = append(docs, domain.Document{
			ID:       strings.TrimSuffix(name, filepath.Ext(name)),
			Content:  content,
			Metadata: map[string]string{"filename": name},
		})
	}

	return domain.NewCorpus(docs)
}

func readTextFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8")
	}
	return string(raw), nil
}

func readPDFFile(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
