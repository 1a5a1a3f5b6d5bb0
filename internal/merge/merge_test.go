package merge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleFilings() []types.Filing {
	return []types.Filing{
		{
			Form:            "10-K",
			FilingDate:      types.NewDate(2023, 11, 3),
			AccessionNumber: "0000320193-23-000106",
			PrimaryDocument: "aapl-20231103.htm",
			ReportDate:      types.NewDate(2023, 9, 30),
		},
		{
			Form:            "10-Q",
			FilingDate:      types.NewDate(2023, 8, 4),
			AccessionNumber: "0000320193-23-000077",
			PrimaryDocument: "aapl-20230804.htm",
		},
	}
}

func TestMergeCategory(t *testing.T) {
	dir := t.TempDir()
	// Compact date in one name, dashed in the other: both forms must match.
	annual := writeDoc(t, dir, "aapl-20231103.htm",
		`<html><head><title>10-K</title></head><body><p>Annual report body</p></body></html>`)
	quarterly := writeDoc(t, dir, "report-2023-08-04.html",
		`<html><body><p>Quarterly report body</p></body></html>`)
	notes := writeDoc(t, dir, "exhibit-notes.txt", "Plain <text> notes")

	out, err := MergeCategory(dir, sampleFilings(), types.CategoryFinancials, "aapl")
	if err != nil {
		t.Fatalf("MergeCategory: %v", err)
	}
	if out == "" {
		t.Fatal("expected a merged file")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "AAPL Financial Reports Filings") {
		t.Error("banner missing ticker and category label")
	}
	if !strings.Contains(content, "3 documents") {
		t.Error("banner missing document count")
	}

	// Contents list newest first, unmatched last.
	toc := []string{
		`<a href="#doc-1">2023-11-03 10-K</a>`,
		`<a href="#doc-2">2023-08-04 10-Q</a>`,
		`<a href="#doc-3">Unknown Date exhibit-notes.txt</a>`,
	}
	pos := 0
	for _, entry := range toc {
		i := strings.Index(content[pos:], entry)
		if i < 0 {
			t.Fatalf("contents entry %q missing or out of order", entry)
		}
		pos += i
	}

	if !strings.Contains(content, `id="doc-1"`) {
		t.Error("missing section anchor")
	}
	if !strings.Contains(content, "Accession: 0000320193-23-000106") {
		t.Error("missing accession metadata")
	}
	if !strings.Contains(content, "Report period: 2023-09-30") {
		t.Error("missing report period metadata")
	}
	if !strings.Contains(content, "<p>Annual report body</p>") {
		t.Error("missing annual report body")
	}
	if !strings.Contains(content, "<p>Quarterly report body</p>") {
		t.Error("missing quarterly report body")
	}
	if !strings.Contains(content, "<pre>Plain &lt;text&gt; notes</pre>") {
		t.Error("text file not embedded as escaped preformatted block")
	}
	if strings.Contains(content, "<title>10-K</title>") {
		t.Error("head content of a source document leaked into the merge")
	}

	// Originals are deleted after a successful merge.
	for _, p := range []string{annual, quarterly, notes} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("source file %s still present", filepath.Base(p))
		}
	}
}

func TestMergeCategorySingleDocumentIsNoOp(t *testing.T) {
	dir := t.TempDir()
	only := writeDoc(t, dir, "aapl-20231103.htm", "<html><body>x</body></html>")

	out, err := MergeCategory(dir, sampleFilings(), types.CategoryFinancials, "aapl")
	if err != nil {
		t.Fatalf("MergeCategory: %v", err)
	}
	if out != "" {
		t.Errorf("expected no-op, got %s", out)
	}
	if _, err := os.Stat(only); err != nil {
		t.Error("single document must be left in place")
	}
}

func TestMergeCategoryIgnoresPreviousMerge(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "aapl-20231103.htm", "<html><body>annual</body></html>")
	writeDoc(t, dir, "report-2023-08-04.html", "<html><body>quarterly</body></html>")
	writeDoc(t, dir, "aapl_financials_merged.html", "<html><body>stale</body></html>")

	out, err := MergeCategory(dir, sampleFilings(), types.CategoryFinancials, "aapl")
	if err != nil {
		t.Fatalf("MergeCategory: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "stale") {
		t.Error("previous merge output was ingested")
	}
	if !strings.Contains(string(data), "2 documents") {
		t.Error("wrong document count")
	}
}

func TestMergeCategoryEmptyDir(t *testing.T) {
	out, err := MergeCategory(t.TempDir(), nil, types.CategoryMaterialEvents, "aapl")
	if err != nil {
		t.Fatalf("MergeCategory: %v", err)
	}
	if out != "" {
		t.Errorf("expected no-op for empty dir, got %s", out)
	}
}

func TestMatchFiling(t *testing.T) {
	filings := sampleFilings()

	if f := matchFiling("aapl-20231103.htm", filings); f == nil || f.Form != "10-K" {
		t.Errorf("compact date match failed: %+v", f)
	}
	if f := matchFiling("x-2023-08-04-y.html", filings); f == nil || f.Form != "10-Q" {
		t.Errorf("dashed date match failed: %+v", f)
	}
	if f := matchFiling("unrelated.htm", filings); f != nil {
		t.Errorf("expected no match, got %+v", f)
	}
}
