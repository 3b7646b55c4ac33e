package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gomas/app"
	"gomas/domain/assoc"
)

func sampleStudy() *app.StudyResult {
	hit := assoc.NewResult("exposure", "pheno1")
	hit.PValue = 0.001
	hit.Beta = 0.8
	hit.OR = 2.23

	weak := assoc.NewResult("exposure", "pheno2")
	weak.PValue = 0.4
	weak.Beta = 0.1
	weak.OR = 1.1

	failed := assoc.NewResult("exposure", "pheno3")
	failed.FailedReason = assoc.ReasonConstantPredictor

	return &app.StudyResult{
		RunID:              "test-run",
		Model:              "firth",
		Results:            []assoc.Result{weak, hit, failed},
		ExcludedDependents: []string{"pheno4"},
	}
}

func TestWrite(t *testing.T) {
	t.Run("markdown report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.md")
		if err := Write(path, sampleStudy()); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		md := string(data)

		for _, want := range []string{
			"# Association study test-run",
			"- Model: firth",
			"- Failed groups: 1",
			"- pheno4",
			assoc.ReasonConstantPredictor,
		} {
			if !strings.Contains(md, want) {
				t.Errorf("report missing %q", want)
			}
		}

		// Top associations sort by p-value, so the strong hit leads.
		hitPos := strings.Index(md, "pheno1")
		weakPos := strings.Index(md, "| exposure | pheno2")
		if hitPos == -1 || weakPos == -1 || hitPos > weakPos {
			t.Error("top associations not ordered by p-value")
		}
	})

	t.Run("html report renders a page", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.html")
		if err := Write(path, sampleStudy()); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		page := string(data)
		if !strings.Contains(page, "<html") {
			t.Error("html report missing page wrapper")
		}
		if !strings.Contains(page, "<table") {
			t.Error("html report missing the associations table")
		}
	})
}
