// Package extract converts contract documents to plain text for local
// preview and matching.
package extract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Extractor extracts plain text from a contract file.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Config configures text extraction.
type Config struct {
	// Provider selects the extraction backend: "auto" (by extension),
	// "docx", or "plain".
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg Config) (Extractor, error) {
	switch cfg.Provider {
	case "auto", "":
		return autoExtractor{}, nil
	case "docx":
		return DocxExtractor{}, nil
	case "plain":
		return PlainExtractor{}, nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Provider)
	}
}

// autoExtractor dispatches on the file extension.
type autoExtractor struct{}

func (autoExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return DocxExtractor{}.ExtractText(ctx, path)
	default:
		return PlainExtractor{}.ExtractText(ctx, path)
	}
}
