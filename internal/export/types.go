// Package export renders a computed Johari window as a PDF report and
// optionally archives generated reports to object storage.
package export

import (
	"errors"
	"time"
)

// Report holds the data rendered into one result report.
type Report struct {
	AssessmentID string
	OwnerName    string
	PeerCount    int
	ComputedAt   time.Time
	Quadrants    []QuadrantSection
	Domains      []DomainRow
}

// QuadrantSection is one of the four window panes.
type QuadrantSection struct {
	Name        string
	Description string
	Adjectives  []string
}

// DomainRow is one line of the per-domain tally table.
type DomainRow struct {
	Domain  string
	Open    int
	Blind   int
	Hidden  int
	Unknown int
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
