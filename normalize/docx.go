package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// normalizeWord parses a .docx by reading word/document.xml from the ZIP
// archive. Tables win: every w:tbl in document order contributes one output
// row per w:tr. Only when the document has no table rows at all does the
// normalizer fall back to flattening paragraphs into one-cell rows.
func (n *Normalizer) normalizeWord(data []byte) (*Result, error) {
	tableRows, paragraphs, err := walkWordDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if len(tableRows) > 0 {
		return &Result{Rows: tableRows, Strategy: StrategyTables}, nil
	}

	if len(paragraphs) == 0 {
		return nil, ErrEmptyDocument
	}
	n.logger.Info("word document has no tables, using paragraph fallback",
		"paragraphs", len(paragraphs))

	rows := make([][]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		rows = append(rows, []string{p})
	}
	return &Result{Rows: rows, Strategy: StrategyParagraphs}, nil
}

// walkWordDocument streams word/document.xml and collects table rows and
// top-level paragraph texts in one pass.
func walkWordDocument(data []byte) (tableRows [][]string, paragraphs []string, err error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, nil, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)

	var (
		tblDepth  int  // nested w:tbl level; >0 means inside a table
		inCell    bool // inside a w:tc
		inText    bool // inside a w:t run
		cellParas []string
		row       []string
		text      strings.Builder
	)

	for {
		tok, tokErr := decoder.Token()
		if tokErr != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth > 0 {
					row = nil
				}
			case "tc":
				if tblDepth > 0 {
					inCell = true
					cellParas = nil
				}
			case "p":
				text.Reset()
			case "t":
				inText = true
			}

		case xml.CharData:
			if inText {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				para := strings.TrimSpace(text.String())
				if inCell {
					if para != "" {
						cellParas = append(cellParas, para)
					}
				} else if tblDepth == 0 && para != "" {
					paragraphs = append(paragraphs, para)
				}
			case "tc":
				if inCell {
					inCell = false
					row = append(row, strings.Join(cellParas, " "))
				}
			case "tr":
				if tblDepth > 0 {
					trimmed, ok := trimRow(row)
					if ok {
						tableRows = append(tableRows, trimmed)
					}
				}
			case "tbl":
				if tblDepth > 0 {
					tblDepth--
				}
			}
		}
	}

	return tableRows, paragraphs, nil
}
