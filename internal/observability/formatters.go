// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/b2b-migrator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtractionJob outputs a human-readable summary of an extraction run.
func (p *Printer) PrintExtractionJob(job *types.ExtractionJob) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:       %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Method:    %s\n", job.Method))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Artifacts: %d", job.ArtifactCount))

	p.printBox("EXTRACTION", sb.String())
}

// PrintTransformSummary outputs the outcome of a transformation pass,
// listing the first few failures in full.
func (p *Printer) PrintTransformSummary(summary *types.TransformSummary) {
	if summary == nil || summary.Attempted == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Attempted: %d\n", summary.Attempted))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", summary.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", summary.Failed))

	failures := 0
	for _, r := range summary.Results {
		if r.Status != types.ResultFailed {
			continue
		}
		if failures == 0 {
			sb.WriteString("\nFailures:\n")
		}
		if failures == maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", summary.Failed-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  • %s %s: %s\n", r.Type, r.OriginalID, r.Error))
		failures++
	}

	p.printBox("TRANSFORMATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchSummary outputs the outcome of a migration batch.
func (p *Printer) PrintBatchSummary(summary *types.BatchSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Attempted: %d\n", summary.Attempted))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", summary.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", summary.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", summary.Skipped))
	if summary.BatchError != "" {
		sb.WriteString(fmt.Sprintf("\nBatch error: %s\n", summary.BatchError))
	}

	shown := 0
	for _, r := range summary.Results {
		if r.Status != types.ResultFailed {
			continue
		}
		if shown == 0 {
			sb.WriteString("\nFailures:\n")
		}
		if shown == maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", summary.Failed-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  • %s %s: %s\n", r.Type, r.OriginalID, r.Error))
		shown++
	}

	p.printBox("MIGRATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArtifact outputs one artifact's lifecycle position.
func (p *Printer) PrintArtifact(artifact *types.Artifact) {
	if artifact == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Original:  %s\n", artifact.OriginalID))
	sb.WriteString(fmt.Sprintf("Type:      %s\n", artifact.Type))
	sb.WriteString(fmt.Sprintf("Status:    %s", artifact.Status))
	if artifact.RemoteID != "" {
		sb.WriteString(fmt.Sprintf("\nRemote:    %s", artifact.RemoteID))
	}
	if artifact.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\nError:     %s", artifact.ErrorMessage))
	}

	p.printBox("ARTIFACT", sb.String())
}
