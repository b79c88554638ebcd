package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// maxFileSize bounds a single source document.
const maxFileSize = 20 * 1024 * 1024

// defaultSkipDirs are never descended into.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
}

// Supported reports whether path has an extension Load reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".pdf":
		return true
	}
	return false
}

// Load walks dir and returns one document per readable text, markdown or
// PDF file. The source metadata is the slash-separated path relative to
// dir. Empty, oversized, binary and symlinked files are skipped and
// listed; ignored files are dropped silently.
func Load(ctx context.Context, dir string, logger *zap.Logger) ([]schema.Document, []string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := validateDir(dir)
	if err != nil {
		return nil, nil, err
	}
	ignore, err := loadIgnore(root)
	if err != nil {
		return nil, nil, err
	}

	var (
		docs    []schema.Document
		skipped []string
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && (defaultSkipDirs[d.Name()] || ignore.matchDir(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Supported(path) || ignore.match(rel) {
			return nil
		}
		// Links may point outside dir; only regular files are read.
		if d.Type()&fs.ModeSymlink != 0 {
			logger.Warn("skipping symlinked document", zap.String("file", rel))
			skipped = append(skipped, rel)
			return nil
		}

		text, err := readFile(path)
		if err != nil {
			logger.Warn("skipping unreadable document", zap.String("file", rel), zap.Error(err))
			skipped = append(skipped, rel)
			return nil
		}
		if strings.TrimSpace(text) == "" {
			logger.Debug("skipping empty document", zap.String("file", rel))
			skipped = append(skipped, rel)
			return nil
		}

		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata:    map[string]any{vectorstore.MetadataSource: rel},
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}

	logger.Info("loaded documents", zap.String("dir", root), zap.Int("documents", len(docs)), zap.Int("skipped", len(skipped)))
	return docs, skipped, nil
}

func validateDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("docs directory cannot be empty")
	}
	clean := filepath.Clean(dir)
	info, err := os.Stat(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("docs directory does not exist: %s", clean)
		}
		return "", fmt.Errorf("stat docs directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("docs path must be a directory: %s", clean)
	}
	return clean, nil
}

func readFile(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file")
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("file is %d bytes, limit is %d", info.Size(), maxFileSize)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("not valid UTF-8")
	}
	return string(content), nil
}

// readPDF extracts plain text. Malformed files can panic inside the pdf
// package; that is reported as an error.
func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
