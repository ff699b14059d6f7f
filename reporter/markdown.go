package reporter

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Markdown writes a Markdown report and, optionally, the same report rendered as HTML.
type Markdown struct {
	collector

	markdownPath string
	htmlPath     string
	title        string
}

var _ Reporter = (*Markdown)(nil)

// NewMarkdown creates a reporter. Either path may be empty to skip that output.
func NewMarkdown(markdownPath, htmlPath string) *Markdown {
	return &Markdown{
		markdownPath: markdownPath,
		htmlPath:     htmlPath,
		title:        cases.Title(language.English).String("sqldoctest report"),
	}
}

// RunFinished writes the configured outputs.
func (m *Markdown) RunFinished(summary *Summary) error {
	md := m.Render(summary)

	if m.markdownPath != "" {
		if err := os.WriteFile(m.markdownPath, md, 0o644); err != nil {
			return fmt.Errorf("failed to write markdown report: %w", err)
		}
	}

	if m.htmlPath != "" {
		page, err := m.RenderHTML(md)
		if err != nil {
			return err
		}

		if err := os.WriteFile(m.htmlPath, page, 0o644); err != nil {
			return fmt.Errorf("failed to write html report: %w", err)
		}
	}

	return nil
}

// Render returns the Markdown report.
func (m *Markdown) Render(summary *Summary) []byte {
	var b bytes.Buffer

	total := summary.Total

	fmt.Fprintf(&b, "# %s\n\n", m.title)
	fmt.Fprintf(&b, "- Run ID: `%s`\n", summary.RunID)

	if !summary.Started.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", summary.Started.Format("2006-01-02 15:04:05 MST"))
	}

	fmt.Fprintf(&b, "- Duration: %.3fs\n", summary.Duration.Seconds())
	fmt.Fprintf(&b, "- Tests: %d total, %d passed, %d failed, %d todo\n\n",
		total.NumTests, total.NumPasses, total.NumFailures(), total.NumTodos)

	b.WriteString("| File | Tests | Passed | Failed | Todo | Status |\n")
	b.WriteString("|---|---:|---:|---:|---:|---|\n")

	for _, file := range m.files {
		agg := file.Result.Aggregate
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %s |\n",
			escapeCell(file.Path), agg.NumTests, agg.NumPasses, agg.NumFailures(), agg.NumTodos, fileStatus(file.Result))
	}

	for _, file := range m.files {
		fmt.Fprintf(&b, "\n## %s\n\n", file.Path)

		if file.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", file.Description)
		}

		if file.Result.Err != nil {
			fmt.Fprintf(&b, "**Error:** %s\n", file.Result.Err)
			continue
		}

		if file.Result.Skipped {
			fmt.Fprintf(&b, "_Skipped: %s_\n", file.Result.SkipReason)
			continue
		}

		for _, test := range file.Tests {
			fmt.Fprintf(&b, "- %s %s (line %d)\n", statusMark(test.Outcome.Status), test.QualifiedName(), test.Line)

			if test.Outcome.Status == caseexecutor.StatusFail {
				fmt.Fprintf(&b, "\n  ```\n  %s\n  ```\n\n", strings.ReplaceAll(test.Outcome.Message, "\n", "\n  "))
			}
		}
	}

	return b.Bytes()
}

// RenderHTML converts a Markdown report into a standalone HTML page.
func (m *Markdown) RenderHTML(md []byte) ([]byte, error) {
	conv := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	var body bytes.Buffer
	if err := conv.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("failed to render html report: %w", err)
	}

	var page bytes.Buffer

	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(m.title))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return page.Bytes(), nil
}

func statusMark(status caseexecutor.Status) string {
	switch status {
	case caseexecutor.StatusPass:
		return "✔"
	case caseexecutor.StatusTodo:
		return "○"
	default:
		return "✗"
	}
}

func fileStatus(result FileResult) string {
	switch {
	case result.Err != nil:
		return "error"
	case result.Skipped:
		return "skipped"
	case result.Aggregate.NumFailures() > 0:
		return "failed"
	default:
		return "passed"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
