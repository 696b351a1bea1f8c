package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ftsql/ftsql/internal/index"
)

func writeTestSegment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	w := NewWriter(dir)
	name, err := w.Write(map[string][]index.PostingRecord{
		"alpha": {
			{DocID: 1, TermFreq: 3, DocTerms: 10, FirstPos: 0},
			{DocID: 4, TermFreq: 1, DocTerms: 12, FirstPos: 7},
			{DocID: 300, TermFreq: 5, DocTerms: 40, FirstPos: 130},
		},
		"beta": {
			{DocID: 4, TermFreq: 2, DocTerms: 12, FirstPos: 3},
		},
	}, 500)
	if err != nil {
		t.Fatalf("writing segment: %v", err)
	}
	return filepath.Join(dir, name)
}

func TestSegmentRoundTrip(t *testing.T) {
	path := writeTestSegment(t)
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("opening segment: %v", err)
	}
	defer r.Close()

	if r.TotalDocuments() != 500 {
		t.Errorf("TotalDocuments = %d, want 500", r.TotalDocuments())
	}
	if r.Terms() != 2 {
		t.Errorf("Terms = %d, want 2", r.Terms())
	}

	c, err := r.OpenCursor("alpha", index.CursorOptions{WithPositions: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []index.PostingRecord{
		{DocID: 1, TermFreq: 3, DocTerms: 10, FirstPos: 0},
		{DocID: 4, TermFreq: 1, DocTerms: 12, FirstPos: 7},
		{DocID: 300, TermFreq: 5, DocTerms: 40, FirstPos: 130},
	}
	for i, w := range want {
		rec, ok := c.Next()
		if !ok {
			t.Fatalf("record %d missing", i)
		}
		if rec != w {
			t.Fatalf("record %d = %+v, want %+v", i, rec, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Error("cursor must be exhausted")
	}
	if c.WordOccurrenceTotal() != 9 {
		t.Errorf("WordOccurrenceTotal = %d, want 9", c.WordOccurrenceTotal())
	}
}

func TestSegmentMissingTerm(t *testing.T) {
	path := writeTestSegment(t)
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	c, err := r.OpenCursor("gamma", index.CursorOptions{})
	if err != nil {
		t.Fatalf("missing term must not error: %v", err)
	}
	if c.DocCount() != 0 {
		t.Errorf("missing term DocCount = %d, want 0", c.DocCount())
	}
}

func TestSegmentPartialCursor(t *testing.T) {
	path := writeTestSegment(t)
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	c, err := r.OpenCursor("alpha", index.CursorOptions{PartialLimit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if c.DocCount() != 2 {
		t.Errorf("partial DocCount = %d, want 2", c.DocCount())
	}
	if c.RelDocCount() != 3 {
		t.Errorf("partial RelDocCount = %d, want 3", c.RelDocCount())
	}
}

func TestSegmentBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg_bogus.ftsg")
	if err := os.WriteFile(path, make([]byte, 128), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("opening a corrupt segment must fail")
	}
}
