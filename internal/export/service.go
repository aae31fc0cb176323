package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"johari/api/internal/catalog"
	"johari/api/internal/johari"
)

var quadrantDescriptions = map[string]string{
	"Open":    "Traits you see in yourself that your peers also see.",
	"Blind":   "Traits your peers see in you that you did not pick.",
	"Hidden":  "Traits you see in yourself that no peer picked.",
	"Unknown": "Traits neither you nor your peers selected.",
}

// Service builds PDF reports from computed windows.
type Service struct {
	archive *Archive
}

func NewService(archive *Archive) *Service {
	return &Service{archive: archive}
}

// BuildReport assembles the report data for one computed window.
func BuildReport(assessmentID, ownerName string, window johari.Window, computedAt time.Time) Report {
	quadrants := []QuadrantSection{
		{Name: "Open", Adjectives: window.Open},
		{Name: "Blind", Adjectives: window.Blind},
		{Name: "Hidden", Adjectives: window.Hidden},
		{Name: "Unknown", Adjectives: window.Unknown},
	}
	for i := range quadrants {
		quadrants[i].Description = quadrantDescriptions[quadrants[i].Name]
	}

	domains := make([]DomainRow, 0, len(catalog.Domains()))
	for _, d := range catalog.Domains() {
		counts := window.DomainSummary[d]
		domains = append(domains, DomainRow{
			Domain:  d,
			Open:    counts.Open,
			Blind:   counts.Blind,
			Hidden:  counts.Hidden,
			Unknown: counts.Unknown,
		})
	}

	return Report{
		AssessmentID: assessmentID,
		OwnerName:    ownerName,
		PeerCount:    window.PeerCount,
		ComputedAt:   computedAt,
		Quadrants:    quadrants,
		Domains:      domains,
	}
}

// ExportPDF renders the report to PDF and archives it when an archive is configured.
func (s *Service) ExportPDF(ctx context.Context, report Report) (*Result, error) {
	html, err := RenderReportHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render report template: %w", err)
	}

	filename := sanitizeFilename("johari-"+report.OwnerName) + ".pdf"
	result, err := renderPDF(html, filename)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, report.AssessmentID, result); err != nil {
			// Archiving is best effort, the caller still gets the PDF.
			log.Printf("{\"level\":\"warn\",\"msg\":\"report archive failed\",\"assessment_id\":%q,\"error\":%q}", report.AssessmentID, err.Error())
		}
	}

	return result, nil
}
