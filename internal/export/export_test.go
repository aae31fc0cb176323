package export

import (
	"strings"
	"testing"
	"time"

	"johari/api/internal/johari"
)

func TestBuildReport(t *testing.T) {
	window := johari.Classify(
		[]string{"witty", "articulate"},
		[][]string{{"witty", "caring"}},
	)
	report := BuildReport("asm_1", "Alex", window, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if report.PeerCount != 1 {
		t.Errorf("PeerCount = %d, want 1", report.PeerCount)
	}
	if len(report.Quadrants) != 4 {
		t.Fatalf("expected 4 quadrants, got %d", len(report.Quadrants))
	}
	if report.Quadrants[0].Name != "Open" || len(report.Quadrants[0].Adjectives) != 1 {
		t.Errorf("open quadrant = %+v, want [witty]", report.Quadrants[0])
	}
	if len(report.Domains) != 8 {
		t.Errorf("expected 8 domain rows, got %d", len(report.Domains))
	}
	for _, q := range report.Quadrants {
		if q.Description == "" {
			t.Errorf("quadrant %s has no description", q.Name)
		}
	}
}

func TestRenderReportHTML(t *testing.T) {
	window := johari.Classify(
		[]string{"witty"},
		[][]string{{"witty"}, {"caring"}},
	)
	report := BuildReport("asm_1", "Alex", window, time.Now())

	html, err := RenderReportHTML(report)
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}

	for _, want := range []string{"Johari Window", "Alex", "2 peer responses", "witty", "interpersonal"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Alex", "Alex"},
		{"spaces become dashes", "Alex Smith", "Alex-Smith"},
		{"strips specials", "a/b\\c:d", "abcd"},
		{"empty falls back", "!!!", "johari-window"},
		{"caps length", strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc", "abc"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"<p>", "%3Cp%3E"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.want {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
