package textutil

import (
	"strings"
	"testing"
)

func TestKeywords(t *testing.T) {
	got := Keywords("Please build the Streamlit dashboard, then build (charts)!")
	want := []string{"build", "streamlit", "dashboard", "charts"}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestKeywords_Empty(t *testing.T) {
	if got := Keywords("a to of the"); len(got) != 0 {
		t.Errorf("Keywords = %v, want none", got)
	}
}

func TestOverlap(t *testing.T) {
	kws := []string{"forecast", "sku", "solver"}
	if got := Overlap(kws, "Weekly SKU demand FORECAST"); got != 2 {
		t.Errorf("Overlap = %d, want 2", got)
	}
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		s, phrase string
		want      bool
	}{
		{"Ship the model", "ship", true},
		{"analyze the customer relationship data", "ship", false},
		{"run EDA, then model", "eda", true},
		{"please load data first", "Load data", true},
		{"reload datasets", "load data", false},
		{"wire it into C++ code", "c++", true},
		{"anything", "  ", false},
	}
	for _, tt := range tests {
		if got := ContainsPhrase(tt.s, tt.phrase); got != tt.want {
			t.Errorf("ContainsPhrase(%q, %q) = %v, want %v", tt.s, tt.phrase, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if got := Truncate(short, 10); got != short {
		t.Errorf("Truncate(short) = %q", got)
	}

	long := "line one\nline two\nline three"
	got := Truncate(long, 20)
	if !strings.HasSuffix(got, "[...truncated]") {
		t.Errorf("missing marker: %q", got)
	}
	if strings.Contains(got, "line three") {
		t.Errorf("should cut at a line boundary: %q", got)
	}
}
