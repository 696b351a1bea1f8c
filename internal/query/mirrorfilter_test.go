package query

import "testing"

func TestSortBound(t *testing.T) {
	tests := []struct {
		end, fallback, want int
	}{
		{0, 300, 300},   // unbounded: fall back to the configured minimum
		{5, 300, 100},   // 5+1+10 = 16, rounded up to 100
		{89, 300, 100},  // 89+1+10 = 100, already a multiple
		{90, 300, 200},  // 90+1+10 = 101, next multiple
		{500, 300, 600}, // 500+1+10 = 511
	}
	for _, tt := range tests {
		if got := sortBound(tt.end, tt.fallback); got != tt.want {
			t.Errorf("sortBound(%d, %d) = %d, want %d", tt.end, tt.fallback, got, tt.want)
		}
	}
}

func TestBuildMirrorSQL(t *testing.T) {
	got := buildMirrorSQL("documents", "title", "doc_id", "%it's%", []int64{3, 1, 2})
	want := "SELECT doc_id FROM documents WHERE title LIKE '%it''s%' AND doc_id IN (3,1,2)"
	if got != want {
		t.Errorf("buildMirrorSQL = %q, want %q", got, want)
	}
}
