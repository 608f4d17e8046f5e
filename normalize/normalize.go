// Package normalize converts uploaded academic-program documents into a
// uniform row grid.
//
// Supported kinds:
//   - spreadsheet — .xlsx workbook (excelize); every sheet contributes its
//     rows in order.
//   - word — .docx (archive/zip → word/document.xml); every table
//     contributes one row per table row, with a paragraph fallback when the
//     document has no tables.
//
// The output is an ordered sequence of rows, each row an ordered sequence of
// trimmed cell strings. Word paragraphs become one-cell rows.
//
// Usage:
//
//	n := normalize.New(normalize.Config{})
//	res, err := n.Normalize(data, normalize.KindWord)
//	fmt.Println(len(res.Rows), res.Strategy)
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind identifies the declared container type of an upload.
type Kind string

const (
	KindSpreadsheet Kind = "spreadsheet"
	KindWord        Kind = "word"
)

// Strategy reports which extraction path produced the rows.
type Strategy string

const (
	StrategySheets     Strategy = "sheets"     // spreadsheet rows, all sheets in order
	StrategyTables     Strategy = "tables"     // word tables, concatenated in document order
	StrategyParagraphs Strategy = "paragraphs" // word paragraph fallback, one cell per row
)

var (
	// ErrUnsupportedFormat means the bytes could not be opened as the
	// declared container. Fatal, no retry.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument means the container opened fine but yielded zero
	// usable rows. Distinct from format errors so callers can suggest
	// checking for a blank file.
	ErrEmptyDocument = errors.New("document has no extractable rows")
)

// ParseKind maps a request string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spreadsheet", "xlsx", "excel":
		return KindSpreadsheet, nil
	case "word", "docx":
		return KindWord, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrUnsupportedFormat, s)
	}
}

// Config configures the normalizer.
type Config struct {
	// MaxFileSize is the maximum upload size to process (default: 20 MiB).
	MaxFileSize int64

	// Logger for diagnostics.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 20 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is the normalized form of one document.
type Result struct {
	Rows     [][]string `json:"rows"`
	Strategy Strategy   `json:"strategy"`
}

// Normalizer turns raw document bytes into a row grid.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Normalizer with the given configuration.
func New(cfg Config) *Normalizer {
	cfg.defaults()
	return &Normalizer{cfg: cfg, logger: cfg.Logger}
}

// Normalize parses data as the declared kind and returns the row grid.
// All parser failures are translated to ErrUnsupportedFormat; a document
// that opens but yields nothing returns ErrEmptyDocument.
func (n *Normalizer) Normalize(data []byte, kind Kind) (*Result, error) {
	if int64(len(data)) > n.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrUnsupportedFormat, len(data), n.cfg.MaxFileSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var (
		res *Result
		err error
	)
	switch kind {
	case KindSpreadsheet:
		res, err = n.normalizeSpreadsheet(data)
	case KindWord:
		res, err = n.normalizeWord(data)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, kind)
	}
	if err != nil {
		return nil, err
	}

	n.logger.Debug("document normalized",
		"kind", kind, "strategy", res.Strategy, "rows", len(res.Rows))
	return res, nil
}

// trimRow trims every cell and reports whether any cell is non-empty.
func trimRow(cells []string) ([]string, bool) {
	out := make([]string, len(cells))
	any := false
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
		if out[i] != "" {
			any = true
		}
	}
	return out, any
}
