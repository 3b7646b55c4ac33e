// Package report renders an optional human-readable run summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gomas/app"
	"gomas/domain/assoc"
	"gomas/internal/errors"
)

const topHits = 10

// Write renders the run summary to the given path, as markdown or, for
// .html outputs, rendered through the markdown parser.
func Write(path string, study *app.StudyResult) error {
	md := buildMarkdown(study)

	var content []byte
	if strings.ToLower(filepath.Ext(path)) == ".html" {
		p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
		renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
		content = markdown.Render(p.Parse([]byte(md)), renderer)
	} else {
		content = []byte(md)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.Wrapf(err, "writing report %s", path)
	}
	return nil
}

func buildMarkdown(study *app.StudyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Association study %s\n\n", study.RunID)
	fmt.Fprintf(&b, "- Model: %s\n", study.Model)
	fmt.Fprintf(&b, "- Groups tested: %d\n", len(study.Results))

	failed := 0
	for i := range study.Results {
		if study.Results[i].Failed() {
			failed++
		}
	}
	fmt.Fprintf(&b, "- Failed groups: %d\n", failed)
	fmt.Fprintf(&b, "- Phenotypes excluded by minimum-count filter: %d\n", len(study.ExcludedDependents))
	fmt.Fprintf(&b, "- Runtime: %s\n\n", study.Runtime)

	if len(study.ExcludedDependents) > 0 {
		b.WriteString("## Excluded phenotypes\n\n")
		for _, dep := range study.ExcludedDependents {
			fmt.Fprintf(&b, "- %s\n", dep)
		}
		b.WriteString("\n")
	}

	hits := successfulByPValue(study.Results)
	if len(hits) > topHits {
		hits = hits[:topHits]
	}
	if len(hits) > 0 {
		b.WriteString("## Top associations\n\n")
		b.WriteString("| predictor | dependent | p-value | beta | OR |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, r := range hits {
			fmt.Fprintf(&b, "| %s | %s | %.3g | %.4g | %.4g |\n", r.Predictor, r.Dependent, r.PValue, r.Beta, r.OR)
		}
		b.WriteString("\n")
	}

	if failed > 0 {
		b.WriteString("## Failures\n\n")
		for i := range study.Results {
			r := &study.Results[i]
			if r.Failed() {
				fmt.Fprintf(&b, "- (%s, %s): %s\n", r.Predictor, r.Dependent, r.FailedReason)
			}
		}
	}
	return b.String()
}

func successfulByPValue(results []assoc.Result) []assoc.Result {
	hits := make([]assoc.Result, 0, len(results))
	for i := range results {
		if !results[i].Failed() {
			hits = append(hits, results[i])
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].PValue < hits[j].PValue
	})
	return hits
}
