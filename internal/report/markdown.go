package report

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"text/template"

	"github.com/opsverify/eks-validator/internal/models"
)

const markdownTemplate = `# EKS Cluster Validation Report

## Metadata

| Field | Value |
|-------|-------|
| Cluster | {{ .Metadata.ClusterName }} |
| Region | {{ .Metadata.Region }} |
| Environment | {{ .Metadata.Environment }} |
| Generated | {{ .Metadata.GeneratedAt.Format "2006-01-02 15:04:05 MST" }} |
| Tool Version | {{ .Metadata.ToolVersion }} |

## Summary

**Overall status: {{ icon .Summary.Overall }} {{ .Summary.Overall }}**

| Checks | Count |
|--------|-------|
| Total | {{ .Summary.TotalChecks }} |
| Passed | {{ .Summary.Passed }} |
| Warnings | {{ .Summary.Warnings }} |
| Failed | {{ .Summary.Failed }} |
| Skipped | {{ .Summary.Skipped }} |
{{ if .Recommendations }}
## Recommendations
{{ range .Recommendations }}
- **[{{ .Severity }}]** {{ .Message }} _({{ .Category }})_
{{- end }}
{{ end }}
## Results
{{ range .Categories }}
### {{ title .Name }} ({{ icon .Status }} {{ .Status }})

` + "```json\n{{ .JSON }}\n```" + `
{{ end }}`

type categorySection struct {
	Name   string
	Status models.Status
	JSON   string
}

type markdownData struct {
	Metadata        Metadata
	Summary         Summary
	Recommendations []models.Recommendation
	Categories      []categorySection
}

func statusIcon(status models.Status) string {
	switch status {
	case models.StatusPass:
		return "✅"
	case models.StatusWarn:
		return "⚠️"
	case models.StatusFail:
		return "❌"
	case models.StatusSkip:
		return "⏭️"
	case models.StatusInfo:
		return "ℹ️"
	default:
		return "❓"
	}
}

func titleCase(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// RenderMarkdown renders the full markdown report. Any template failure
// degrades to a minimal report carrying the raw results so a rendering bug
// never loses the validation data.
func RenderMarkdown(results models.Branch, meta Metadata) string {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"icon":  statusIcon,
		"title": titleCase,
	}).Parse(markdownTemplate)
	if err != nil {
		return fallbackReport(results, meta)
	}

	data := markdownData{
		Metadata:        meta,
		Summary:         Summarize(results),
		Recommendations: CollectRecommendations(results),
		Categories:      categorySections(results),
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return fallbackReport(results, meta)
	}
	return sb.String()
}

// categorySections orders categories alphabetically for stable output.
func categorySections(results models.Branch) []categorySection {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]categorySection, 0, len(names))
	for _, name := range names {
		raw, err := json.MarshalIndent(results[name], "", "  ")
		if err != nil {
			raw = []byte(fmt.Sprintf("{\"error\": %q}", err.Error()))
		}
		sections = append(sections, categorySection{
			Name:   name,
			Status: models.Aggregate(results[name]),
			JSON:   string(raw),
		})
	}
	return sections
}

// fallbackReport is the guaranteed-render path when templating fails.
func fallbackReport(results models.Branch, meta Metadata) string {
	var sb strings.Builder
	sb.WriteString("# EKS Cluster Validation Report\n\n")
	fmt.Fprintf(&sb, "- Cluster: %s\n", meta.ClusterName)
	fmt.Fprintf(&sb, "- Region: %s\n", meta.Region)
	fmt.Fprintf(&sb, "- Environment: %s\n", meta.Environment)
	fmt.Fprintf(&sb, "- Generated: %s\n\n", meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	sb.WriteString("Report template rendering failed; raw results follow.\n\n")

	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(&sb, "Results could not be serialized: %v\n", err)
		return sb.String()
	}
	sb.WriteString("```json\n")
	sb.Write(raw)
	sb.WriteString("\n```\n")
	return sb.String()
}

// RenderQuickSummary renders a console-friendly summary with the top five
// recommendations.
func RenderQuickSummary(results models.Branch, meta Metadata) string {
	summary := Summarize(results)
	recs := CollectRecommendations(results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Cluster %s (%s) validation: %s %s\n",
		meta.ClusterName, meta.Environment, statusIcon(summary.Overall), summary.Overall)
	fmt.Fprintf(&sb, "Checks: %d total, %d passed, %d warnings, %d failed, %d skipped\n",
		summary.TotalChecks, summary.Passed, summary.Warnings, summary.Failed, summary.Skipped)

	if len(recs) > 0 {
		sb.WriteString("\nTop recommendations:\n")
		limit := len(recs)
		if limit > 5 {
			limit = 5
		}
		for _, rec := range recs[:limit] {
			fmt.Fprintf(&sb, "  [%s] %s\n", rec.Severity, rec.Message)
		}
	}
	return sb.String()
}

const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>EKS Validation Report - %s</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; color: #1f2933; }
header { border-bottom: 2px solid #e4e7eb; padding-bottom: 1rem; margin-bottom: 1rem; }
pre { background: #f5f7fa; padding: 1rem; overflow-x: auto; border-radius: 4px; }
.summary { background: #f5f7fa; padding: 1rem; border-radius: 4px; }
</style>
</head>
<body>
<header><h1>EKS Cluster Validation Report</h1><p>%s / %s</p></header>
<div class="summary"><pre>%s</pre></div>
<pre>%s</pre>
</body>
</html>
`

// RenderHTML wraps the markdown report in a static HTML shell.
func RenderHTML(results models.Branch, meta Metadata) string {
	markdown := RenderMarkdown(results, meta)
	quick := RenderQuickSummary(results, meta)
	return fmt.Sprintf(htmlShell,
		html.EscapeString(meta.ClusterName),
		html.EscapeString(meta.Environment),
		html.EscapeString(meta.ClusterName),
		html.EscapeString(quick),
		html.EscapeString(markdown))
}
