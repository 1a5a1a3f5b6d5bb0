// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge combines the downloaded documents of a filing category
// into a single navigable HTML file with a table of contents.
package merge

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

const mergedSuffix = "_merged.html"

// document pairs a source file with the filing it was matched to, or a
// nil filing when no match was found.
type document struct {
	name   string
	path   string
	filing *types.Filing
}

// MergeCategory combines every document in dir into one file and deletes
// the originals. It returns the merged file's path, or "" without error
// when dir holds fewer than two documents. Files are matched to filings
// by looking for the filing date in the filename, in either dashed or
// compact form; unmatched files are kept with "Unknown Date" metadata
// and sort last.
func MergeCategory(dir string, filings []types.Filing, category types.FilingCategory, ticker string) (string, error) {
	docs, err := listDocuments(dir, filings)
	if err != nil {
		return "", err
	}
	if len(docs) < 2 {
		return "", nil
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch {
		case a.filing != nil && b.filing != nil:
			return a.filing.FilingDate.After(b.filing.FilingDate.Time)
		case a.filing != nil:
			return true
		case b.filing != nil:
			return false
		default:
			return a.name < b.name
		}
	})

	merged, err := render(docs, category, ticker)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(dir, strings.ToLower(ticker)+"_"+string(category)+mergedSuffix)
	if err := os.WriteFile(outPath, merged, 0o644); err != nil {
		return "", fmt.Errorf("writing merged document: %w", err)
	}

	for _, d := range docs {
		if err := os.Remove(d.path); err != nil {
			return outPath, fmt.Errorf("removing source file %s: %w", d.name, err)
		}
	}
	return outPath, nil
}

// listDocuments returns the regular files in dir, skipping output from a
// previous merge so re-runs do not ingest their own product.
func listDocuments(dir string, filings []types.Filing) ([]document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var docs []document
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), mergedSuffix) {
			continue
		}
		docs = append(docs, document{
			name:   e.Name(),
			path:   filepath.Join(dir, e.Name()),
			filing: matchFiling(e.Name(), filings),
		})
	}
	return docs, nil
}

func matchFiling(name string, filings []types.Filing) *types.Filing {
	for i := range filings {
		d := filings[i].FilingDate
		if d.IsZero() {
			continue
		}
		if strings.Contains(name, d.String()) || strings.Contains(name, d.Compact()) {
			return &filings[i]
		}
	}
	return nil
}

func render(docs []document, category types.FilingCategory, ticker string) ([]byte, error) {
	title := fmt.Sprintf("%s %s Filings", strings.ToUpper(ticker), category.Label())

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))

	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<p>%d documents, generated %s</p>\n",
		len(docs), time.Now().Format("2006-01-02 15:04 MST"))

	b.WriteString("<h2>Contents</h2>\n<ul>\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "<li><a href=\"#doc-%d\">%s</a></li>\n", i+1, html.EscapeString(tocEntry(d)))
	}
	b.WriteString("</ul>\n")

	for i, d := range docs {
		raw, err := os.ReadFile(d.path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", d.name, err)
		}
		fmt.Fprintf(&b, "<div id=\"doc-%d\" style=\"page-break-before: always\">\n", i+1)
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(tocEntry(d)))
		b.WriteString(metadataBlock(d))
		b.WriteString(extractBody(raw, d.name))
		b.WriteString("\n</div>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String()), nil
}

func tocEntry(d document) string {
	if d.filing == nil {
		return "Unknown Date " + d.name
	}
	return fmt.Sprintf("%s %s", d.filing.FilingDate, d.filing.Form)
}

func metadataBlock(d document) string {
	var lines []string
	if d.filing != nil {
		lines = append(lines, "Filed: "+d.filing.FilingDate.String())
		if d.filing.AccessionNumber != "" {
			lines = append(lines, "Accession: "+d.filing.AccessionNumber)
		}
		if !d.filing.ReportDate.IsZero() {
			lines = append(lines, "Report period: "+d.filing.ReportDate.String())
		}
	} else {
		lines = append(lines, "Filed: Unknown Date")
	}
	lines = append(lines, "Source file: "+d.name)
	return "<p>" + html.EscapeString(strings.Join(lines, " | ")) + "</p>\n"
}

// extractBody returns the content between the document's body tags, the
// whole document when parsing fails, or a preformatted block for plain
// text files.
func extractBody(raw []byte, name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".txt") {
		return "<pre>" + html.EscapeString(string(raw)) + "</pre>"
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		return string(raw)
	}
	return body
}
