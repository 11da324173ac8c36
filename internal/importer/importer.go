// Package importer builds the country dataset file from per-country
// advisory source documents. Document formats hold one country per file
// named "{ISO3}_{Country Name}.{ext}"; spreadsheet formats hold one country
// per row with iso3, countryName, warning and content columns.
package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"advisory-rag/internal/dataset"
)

// Entry is one country's dataset record, keyed externally by ISO3 code.
type Entry struct {
	CountryName string `json:"countryName"`
	Content     string `json:"content"`
	Warning     bool   `json:"warning"`
}

var iso3Re = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Document formats carry no warning column, so the flag is read off the
// advisory text itself. The phrases match the usual level-3/4 wording.
var warningPhrases = []string{
	"do not travel",
	"reconsider travel",
	"avoid all travel",
}

// ImportDir imports every supported file in dir. Files that fail to parse
// are logged and skipped, so one bad document does not sink the batch.
func ImportDir(dir string) (map[string]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import dir: %w", err)
	}
	out := make(map[string]Entry)
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if !supportedExt(strings.ToLower(filepath.Ext(de.Name()))) {
			log.Debug().Str("file", de.Name()).Msg("skipping unsupported file")
			continue
		}
		entries, err := ImportFile(filepath.Join(dir, de.Name()))
		if err != nil {
			log.Error().Err(err).Str("file", de.Name()).Msg("importing file failed")
			continue
		}
		for iso3, entry := range entries {
			if _, dup := out[iso3]; dup {
				log.Warn().Str("iso3", iso3).Str("file", de.Name()).Msg("duplicate country, keeping the later file")
			}
			out[iso3] = entry
		}
	}
	log.Info().Int("countries", len(out)).Str("dir", dir).Msg("import finished")
	return out, nil
}

// ImportFile parses one advisory source file into dataset entries.
func ImportFile(path string) (map[string]Entry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		return parseXLSX(path)
	case ".ods":
		return parseODS(path)
	case ".txt", ".md", ".pdf", ".docx":
		iso3, name, err := parseFileName(path)
		if err != nil {
			return nil, err
		}
		var content string
		switch ext {
		case ".txt":
			content, err = parseText(path)
		case ".md":
			content, err = parseMarkdown(path)
		case ".pdf":
			content, err = parsePDF(path)
		case ".docx":
			content, err = parseDOCX(path)
		}
		if err != nil {
			return nil, err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return nil, fmt.Errorf("%s: no advisory text", filepath.Base(path))
		}
		entry := Entry{CountryName: name, Content: content, Warning: detectWarning(content)}
		return map[string]Entry{iso3: entry}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// WriteDataset marshals entries in the dataset file layout and proves the
// result loads before anything reaches disk.
func WriteDataset(path string, entries map[string]Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("nothing to write: no countries imported")
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if _, err := dataset.Parse(data); err != nil {
		return fmt.Errorf("imported dataset is invalid: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	log.Info().Int("countries", len(entries)).Str("path", path).Msg("dataset written")
	return nil
}

func supportedExt(ext string) bool {
	switch ext {
	case ".txt", ".md", ".pdf", ".docx", ".xlsx", ".ods":
		return true
	}
	return false
}

// parseFileName splits "{ISO3}_{Country Name}.{ext}" into its parts.
// Underscores inside the name stand in for spaces.
func parseFileName(path string) (iso3, name string, err error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	code, rest, found := strings.Cut(base, "_")
	if !found || rest == "" {
		return "", "", fmt.Errorf("%s: want {ISO3}_{Country Name} naming", filepath.Base(path))
	}
	if !iso3Re.MatchString(code) {
		return "", "", fmt.Errorf("%s: %q is not an ISO3 code", filepath.Base(path), code)
	}
	return strings.ToUpper(code), strings.ReplaceAll(rest, "_", " "), nil
}

func detectWarning(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range warningPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseMarkdown walks the goldmark AST and keeps only the text nodes, so
// headings and emphasis markers do not leak into the stored advisory.
func parseMarkdown(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(source))
	var buf strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteString(" ")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walk markdown: %w", err)
	}
	return buf.String(), nil
}

func parsePDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		buf.WriteString(pageText)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func parseDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()
	return extractTagText(r.Editable().GetContent(), "w:t"), nil
}

// extractTagText pulls the text runs out of raw OOXML, tolerating attributes
// on the opening tag and skipping self-closing empty runs.
func extractTagText(xmlContent, tag string) string {
	var text strings.Builder
	closing := "</" + tag + ">"
	parts := strings.Split(xmlContent, "<"+tag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		gt := strings.Index(part, ">")
		if gt < 0 {
			continue
		}
		if gt > 0 && part[gt-1] == '/' {
			continue
		}
		rest := part[gt+1:]
		end := strings.Index(rest, closing)
		if end < 0 {
			continue
		}
		text.WriteString(rest[:end])
		text.WriteString(" ")
	}
	return strings.TrimSpace(text.String())
}

func parseXLSX(path string) (map[string]Entry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	out := make(map[string]Entry)
	for _, sheet := range f.Sheets {
		for i, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			if err := addRow(out, cells, i); err != nil {
				return nil, fmt.Errorf("%s sheet %s: %w", filepath.Base(path), sheet.Name, err)
			}
		}
	}
	return out, nil
}

func parseODS(path string) (map[string]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open ods: %w", err)
	}
	defer f.Close()

	out := make(map[string]Entry)
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
		}
		for i, row := range rows {
			if err := addRow(out, row, i); err != nil {
				return nil, fmt.Errorf("%s sheet %s: %w", filepath.Base(path), sheetName, err)
			}
		}
	}
	return out, nil
}

// addRow maps one spreadsheet row onto a dataset entry. Row zero is treated
// as a header when its first cell names the iso3 column; blank rows are
// skipped.
func addRow(out map[string]Entry, cells []string, index int) error {
	if len(cells) == 0 {
		return nil
	}
	first := strings.TrimSpace(cells[0])
	if first == "" {
		return nil
	}
	if index == 0 && strings.EqualFold(first, "iso3") {
		return nil
	}
	if len(cells) < 4 {
		return fmt.Errorf("row %d: want iso3, countryName, warning, content columns", index+1)
	}
	if !iso3Re.MatchString(first) {
		return fmt.Errorf("row %d: %q is not an ISO3 code", index+1, first)
	}
	warning := false
	if w := strings.TrimSpace(cells[2]); w != "" {
		parsed, err := strconv.ParseBool(strings.ToLower(w))
		if err != nil {
			return fmt.Errorf("row %d: warning %q is not a boolean", index+1, cells[2])
		}
		warning = parsed
	}
	name := strings.TrimSpace(cells[1])
	content := strings.TrimSpace(cells[3])
	if name == "" || content == "" {
		return fmt.Errorf("row %d: empty countryName or content", index+1)
	}
	out[strings.ToUpper(first)] = Entry{CountryName: name, Content: content, Warning: warning}
	return nil
}
