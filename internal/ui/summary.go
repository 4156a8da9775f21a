package ui

import (
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"

	"github.com/temirov/gitbackup/internal/backup"
)

const (
	summaryRepositoryHeaderConstant = "Repository"
	summaryModeHeaderConstant       = "Mode"
	summaryKindHeaderConstant       = "Kind"
	summaryPathHeaderConstant       = "Path"
	rootRepositoryLabelConstant     = "."
	prunedKindLabelConstant         = "pruned"
	emptyCaptureKindLabelConstant   = "nothing captured"
	placeholderCellConstant         = "-"
)

// SummaryRenderer prints the artifacts of a capture as a table.
type SummaryRenderer struct {
	output io.Writer
}

// NewSummaryRenderer constructs a SummaryRenderer writing to output.
func NewSummaryRenderer(output io.Writer) *SummaryRenderer {
	return &SummaryRenderer{output: output}
}

// Render writes one row per artifact, including submodule captures.
func (renderer *SummaryRenderer) Render(result backup.Result) {
	table := tablewriter.NewWriter(renderer.output)
	table.SetHeader([]string{summaryRepositoryHeaderConstant, summaryModeHeaderConstant, summaryKindHeaderConstant, summaryPathHeaderConstant})
	table.SetAutoWrapText(false)
	for _, row := range SummaryRows(result) {
		table.Append(row)
	}
	table.Render()
}

// SummaryRows flattens a capture result into table rows. Submodule rows are labelled by their path
// relative to the root capture.
func SummaryRows(result backup.Result) [][]string {
	return appendSummaryRows(nil, result, result.OutputDirectory)
}

func appendSummaryRows(rows [][]string, result backup.Result, rootOutputDirectory string) [][]string {
	repositoryLabel := rootRepositoryLabelConstant
	if relativePath, relativeError := filepath.Rel(rootOutputDirectory, result.OutputDirectory); relativeError == nil {
		repositoryLabel = filepath.ToSlash(relativePath)
	}
	mode := string(result.Mode)
	if len(mode) == 0 {
		mode = placeholderCellConstant
	}

	switch {
	case result.Trivial:
		rows = append(rows, []string{repositoryLabel, mode, prunedKindLabelConstant, placeholderCellConstant})
	case len(result.Artifacts) == 0:
		rows = append(rows, []string{repositoryLabel, mode, emptyCaptureKindLabelConstant, placeholderCellConstant})
	default:
		for _, artifact := range result.Artifacts {
			rows = append(rows, []string{repositoryLabel, mode, string(artifact.Kind), artifact.Path})
		}
	}

	for _, submodule := range result.Submodules {
		rows = appendSummaryRows(rows, submodule, rootOutputDirectory)
	}
	return rows
}
