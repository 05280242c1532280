// Package report turns a validation result tree into summaries and rendered
// reports (markdown, JSON, HTML), and handles saving them to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
)

// Metadata describes the validation run a report covers.
type Metadata struct {
	ClusterName string    `json:"cluster_name"`
	Region      string    `json:"region"`
	Environment string    `json:"environment"`
	GeneratedAt time.Time `json:"generated_at"`
	ToolVersion string    `json:"tool_version"`
}

// NewMetadata builds report metadata from an environment.
func NewMetadata(env config.Environment, toolVersion string, now time.Time) Metadata {
	return Metadata{
		ClusterName: env.ClusterName,
		Region:      env.Region,
		Environment: env.Name,
		GeneratedAt: now,
		ToolVersion: toolVersion,
	}
}

// Summary aggregates the check counts across a result tree.
type Summary struct {
	TotalChecks int           `json:"total_checks"`
	Passed      int           `json:"passed_checks"`
	Warnings    int           `json:"warning_checks"`
	Failed      int           `json:"failed_checks"`
	Skipped     int           `json:"skipped_checks"`
	Overall     models.Status `json:"overall_status"`
}

// Summarize walks the tree and counts every leaf by status. Overall is FAIL
// when anything failed, WARN when anything warned, PASS when at least one
// check passed, and UNKNOWN for an empty tree.
func Summarize(root models.Node) Summary {
	var summary Summary
	models.Walk(root, func(_ string, check models.CheckResult) {
		summary.TotalChecks++
		switch check.Status {
		case models.StatusPass:
			summary.Passed++
		case models.StatusWarn:
			summary.Warnings++
		case models.StatusFail:
			summary.Failed++
		case models.StatusSkip:
			summary.Skipped++
		}
	})

	switch {
	case summary.Failed > 0:
		summary.Overall = models.StatusFail
	case summary.Warnings > 0:
		summary.Overall = models.StatusWarn
	case summary.Passed > 0:
		summary.Overall = models.StatusPass
	default:
		summary.Overall = models.StatusUnknown
	}
	return summary
}

// severityRank orders recommendations HIGH, MEDIUM, LOW, then everything else.
func severityRank(severity models.Severity) int {
	switch severity {
	case models.SeverityHigh:
		return 0
	case models.SeverityMedium:
		return 1
	case models.SeverityLow:
		return 2
	default:
		return 3
	}
}

// CollectRecommendations gathers every recommendation in the tree, tags it
// with the dotted path of the check that raised it, and sorts by severity
// then category path. The walk order over branch maps is not deterministic,
// so the category tie-break keeps identical runs rendering identically.
func CollectRecommendations(root models.Node) []models.Recommendation {
	var recs []models.Recommendation
	models.Walk(root, func(path string, check models.CheckResult) {
		for _, rec := range check.Recommendations {
			rec.Category = path
			recs = append(recs, rec)
		}
	})
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := severityRank(recs[i].Severity), severityRank(recs[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return recs[i].Category < recs[j].Category
	})
	return recs
}

// jsonReport is the export shape for machine consumption.
type jsonReport struct {
	Metadata          Metadata                `json:"metadata"`
	ValidationResults models.Branch           `json:"validation_results"`
	Summary           Summary                 `json:"summary"`
	Recommendations   []models.Recommendation `json:"recommendations"`
}

// ExportJSON renders the full report as indented JSON.
func ExportJSON(results models.Branch, meta Metadata) ([]byte, error) {
	out, err := json.MarshalIndent(jsonReport{
		Metadata:          meta,
		ValidationResults: results,
		Summary:           Summarize(results),
		Recommendations:   CollectRecommendations(results),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return out, nil
}

// Save writes the report content, creating parent directories as needed.
func Save(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write report %q: %w", path, err)
	}
	return nil
}

// AutoReportPath builds the default report path for an environment.
func AutoReportPath(dir, environment, format string, now time.Time) string {
	ext := "md"
	switch format {
	case "json":
		ext = "json"
	case "html":
		ext = "html"
	}
	name := fmt.Sprintf("eks_validation_%s_%s.%s", environment, now.Format("20060102_150405"), ext)
	return filepath.Join(dir, name)
}
