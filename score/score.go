// Package score assigns structural roles to cells of a normalized document.
//
// For every non-empty cell in the first columns of every row it computes an
// additive weighted score from structural features (all upper-case,
// alphabetic content, novelty within the scan, header-keyword match). Cells
// that are purely numeric or look like date tokens are rejected outright.
// Cells at or above the threshold become detected titles.
//
// Scanning the same rows twice yields an identical ordered title list: there
// is no randomness and the duplicate filter is reset per scan.
package score

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// Role is the structural role assigned to an accepted cell.
type Role string

const (
	RoleCabecera     Role = "cabecera"        // document header field (keyword match)
	RoleSectionTitle Role = "titulo_seccion"  // section-opening title (all caps)
	RoleFieldLabel   Role = "etiqueta_campo"  // ordinary field label
)

// Flags records which features contributed to a title's score.
type Flags struct {
	Uppercase   bool `json:"uppercase"`
	Alphabetic  bool `json:"alphabetic"`
	Novel       bool `json:"novel"`
	Keyword     bool `json:"keyword"`
	FirstColumn bool `json:"first_column"`
	Length      int  `json:"length"`
}

// Title is one accepted cell, with its score and audit flags.
type Title struct {
	Raw      string  `json:"raw"`
	Clean    string  `json:"clean"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	ColLabel string  `json:"col_label"`
	Role     Role    `json:"role"`
	Score    float64 `json:"score"`
	Flags    Flags   `json:"flags"`
}

// Config holds the scoring weights and keyword list. The exact constants are
// deployment tunables, not invariants: override them from configuration and
// validate against a corpus of real documents.
type Config struct {
	WeightUppercase  float64  `yaml:"weight_uppercase"`
	WeightAlphabetic float64  `yaml:"weight_alphabetic"`
	WeightNovel      float64  `yaml:"weight_novel"`
	WeightKeyword    float64  `yaml:"weight_keyword"`
	MinScore         float64  `yaml:"min_score"`
	Columns          int      `yaml:"columns"`
	HeaderKeywords   []string `yaml:"header_keywords"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.WeightUppercase <= 0 {
		c.WeightUppercase = 2.0
	}
	if c.WeightAlphabetic <= 0 {
		c.WeightAlphabetic = 1.5
	}
	if c.WeightNovel <= 0 {
		c.WeightNovel = 1.0
	}
	if c.WeightKeyword <= 0 {
		c.WeightKeyword = 3.0
	}
	if c.MinScore <= 0 {
		c.MinScore = 3.0
	}
	if c.Columns <= 0 {
		c.Columns = 3
	}
	if len(c.HeaderKeywords) == 0 {
		c.HeaderKeywords = DefaultHeaderKeywords()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// DefaultHeaderKeywords returns the built-in institutional keyword list.
func DefaultHeaderKeywords() []string {
	return []string{
		"periodo académico",
		"asignatura",
		"materia",
		"docente",
		"facultad",
		"carrera",
		"nivel",
		"paralelo",
		"modalidad",
		"unidad",
		"objetivos",
		"contenidos",
		"metodología",
		"bibliografía",
		"resultados de aprendizaje",
		"perfil de egreso",
		"criterios de evaluación",
	}
}

// Engine scans normalized rows for title cells.
type Engine struct {
	cfg      Config
	keywords []string // lower-cased copy of cfg.HeaderKeywords
	logger   *slog.Logger
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	cfg.defaults()
	kws := make([]string, len(cfg.HeaderKeywords))
	for i, k := range cfg.HeaderKeywords {
		kws[i] = strings.ToLower(k)
	}
	return &Engine{cfg: cfg, keywords: kws, logger: cfg.Logger}
}

// Scan examines the first cfg.Columns cells of every row, column 1 → N, and
// returns the accepted titles in row/column order. A cell identical
// (case-insensitive, cleaned) to an already accepted title is skipped.
func (e *Engine) Scan(rows [][]string) []Title {
	var titles []Title
	seen := make(map[string]bool)

	for rowIdx, row := range rows {
		limit := min(len(row), e.cfg.Columns)
		for col := 0; col < limit; col++ {
			raw := row[col]
			clean := CleanText(raw)
			if clean == "" {
				continue
			}
			if isNumericToken(clean) || isDateToken(clean) {
				continue
			}

			key := strings.ToLower(clean)
			if seen[key] {
				// Duplicate of an accepted title in this scan — skipped, never an error.
				continue
			}

			flags := Flags{
				Uppercase:   isAllUpper(clean),
				Alphabetic:  hasAlphabeticShape(clean),
				Novel:       true, // seen-map already filtered duplicates
				Keyword:     e.matchKeyword(key),
				FirstColumn: col == 0,
				Length:      len([]rune(clean)),
			}

			score := 0.0
			if flags.Uppercase {
				score += e.cfg.WeightUppercase
			}
			if flags.Alphabetic {
				score += e.cfg.WeightAlphabetic
			}
			if flags.Novel {
				score += e.cfg.WeightNovel
			}
			if flags.Keyword {
				score += e.cfg.WeightKeyword
			}

			if score < e.cfg.MinScore {
				continue
			}

			seen[key] = true
			titles = append(titles, Title{
				Raw:      raw,
				Clean:    clean,
				Row:      rowIdx,
				Col:      col,
				ColLabel: colLabel(col),
				Role:     classifyRole(flags),
				Score:    score,
				Flags:    flags,
			})
		}
	}

	e.logger.Debug("title scan complete", "rows", len(rows), "titles", len(titles))
	return titles
}

func classifyRole(f Flags) Role {
	switch {
	case f.Keyword:
		return RoleCabecera
	case f.Uppercase:
		return RoleSectionTitle
	default:
		return RoleFieldLabel
	}
}

func (e *Engine) matchKeyword(lowerClean string) bool {
	for _, k := range e.keywords {
		if strings.Contains(lowerClean, k) {
			return true
		}
	}
	return false
}

// CleanText collapses internal whitespace and strips decorative trailing
// punctuation ("OBJETIVOS:" and "OBJETIVOS" are the same title).
func CleanText(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	clean = strings.TrimRight(clean, ":.;")
	return strings.TrimSpace(clean)
}

// colLabel converts a zero-based column index to its spreadsheet label.
func colLabel(col int) string {
	label := ""
	n := col
	for {
		label = string(rune('A'+n%26)) + label
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return label
}

var dateRe = regexp.MustCompile(`^\d{1,4}([-/.]\d{1,2}){1,2}$`)

// isDateToken matches bare date-ish tokens like 2025-1, 12/05/2024, 1.10.24.
func isDateToken(s string) bool {
	return dateRe.MatchString(s)
}

// isNumericToken reports whether s contains no letters at all — bare
// numbers, codes like "12-3", percentages, etc.
func isNumericToken(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// isAllUpper reports whether every letter in s is upper-case (and there is
// at least one letter).
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// hasAlphabeticShape reports whether s contains only letters, spaces and
// punctuation, with at least one alphabetic run of length ≥ 3. Filters out
// bare numbers, codes and date fragments that survived the token filters.
func hasAlphabeticShape(s string) bool {
	run := 0
	best := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			run++
			if run > best {
				best = run
			}
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			run = 0
		default:
			return false
		}
	}
	return best >= 3
}

// String implements fmt.Stringer for log readability.
func (t Title) String() string {
	return fmt.Sprintf("%s (fila %d, col %s, %.1f)", t.Clean, t.Row, t.ColLabel, t.Score)
}
