package preprocess

import (
	"math"
	"strconv"
	"strings"

	"gomas/domain/frame"
	"gomas/internal/errors"
)

// Sex coding in the configured sex covariate column.
const (
	sexMale   = 0.0
	sexFemale = 1.0
)

// Phecode ranges for sex-restricted phenotypes. Exported so deployments
// with a different phenotype dictionary can override the policy.
var (
	// MaleRestrictedRanges covers the male genitourinary phecode block.
	MaleRestrictedRanges = [][2]float64{{600, 609}}
	// FemaleRestrictedRanges covers the female genitourinary and
	// pregnancy phecode blocks.
	FemaleRestrictedRanges = [][2]float64{{610, 689}}
)

// sexRestriction classifies a dependent column name. Returns the sex the
// phenotype is restricted to, or NaN when unrestricted.
func sexRestriction(name string) float64 {
	code, ok := parsePhecode(name)
	if !ok {
		return math.NaN()
	}
	for _, r := range MaleRestrictedRanges {
		if code >= r[0] && code < r[1] {
			return sexMale
		}
	}
	for _, r := range FemaleRestrictedRanges {
		if code >= r[0] && code < r[1] {
			return sexFemale
		}
	}
	return math.NaN()
}

// parsePhecode extracts the numeric phecode from a column name, tolerating
// a non-numeric prefix such as "phecode_601.1" or "X601.1".
func parsePhecode(name string) (float64, bool) {
	start := strings.IndexAny(name, "0123456789")
	if start == -1 {
		return 0, false
	}
	code, err := strconv.ParseFloat(strings.TrimSpace(name[start:]), 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// phewasFilter handles sex-restricted phenotypes. In drop mode the
// restricted dependent columns leave the analysis entirely. Otherwise each
// mismatched observation is nulled per sample (male-restricted phenotypes
// are invalid for female samples and vice versa) so the melt stage's
// dependent-null drop excludes exactly those observations.
func (p *Pipeline) phewasFilter(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	if !p.cfg.Phewas {
		return f, nil
	}

	restricted := make(map[string]float64)
	for _, dep := range roles.Dependents {
		if sex := sexRestriction(dep); !math.IsNaN(sex) {
			restricted[dep] = sex
		}
	}
	if len(restricted) == 0 {
		return f, nil
	}

	if p.cfg.PhewasDropSexSpecific {
		names := make([]string, 0, len(restricted))
		for dep := range restricted {
			names = append(names, dep)
		}
		roles.RemoveDependents(names)
		p.log.Info("excluded %d sex-restricted phenotypes from analysis", len(names))
		return f.Drop(names...), nil
	}

	sexCol, ok := f.Column(p.cfg.PhewasSexCol)
	if !ok {
		return nil, errors.Newf(errors.CodeConfigInvalid,
			"sex covariate column %q not found for PheWAS filtering", p.cfg.PhewasSexCol)
	}

	excluded := 0
	for dep, requiredSex := range restricted {
		s := f.MustColumn(dep)
		for i := 0; i < s.Len(); i++ {
			if s.IsNull(i) || sexCol.IsNull(i) {
				continue
			}
			if sexCol.Values[i] != requiredSex {
				s.Values[i] = math.NaN()
				if i < len(s.Raw) {
					s.Raw[i] = ""
				}
				excluded++
			}
		}
	}
	p.log.Info("excluded %d sex-mismatched observations across %d restricted phenotypes", excluded, len(restricted))
	return f, nil
}
