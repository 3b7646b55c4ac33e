package preprocess

import (
	"gomas/domain/frame"
	"gomas/internal/errors"
	"gomas/internal/logger"
)

func frameColumnMissing(name string) error {
	return errors.Newf(errors.CodeValidationError, "column %q not in frame", name)
}

// FilterByCount excludes binary dependents whose case or control count
// falls below minCases. The counts are global per dependent, computed once
// on the wide frame before any per-predictor grouping, and the excluded
// dependents leave the whole study. Returns the excluded column names.
func FilterByCount(f *frame.Frame, roles *frame.Roles, minCases int, quantitative bool, log *logger.Logger) ([]string, error) {
	if quantitative {
		return nil, nil
	}

	var excluded []string
	for _, dep := range roles.Dependents {
		s, ok := f.Column(dep)
		if !ok {
			return nil, frameColumnMissing(dep)
		}
		cases, controls := 0, 0
		for i := 0; i < s.Len(); i++ {
			if s.IsNull(i) {
				continue
			}
			if s.Values[i] == 1 {
				cases++
			} else {
				controls++
			}
		}
		if cases < minCases || controls < minCases {
			excluded = append(excluded, dep)
			log.Debug("phenotype %q excluded: %d cases, %d controls (minimum %d)", dep, cases, controls, minCases)
		}
	}
	if len(excluded) > 0 {
		roles.RemoveDependents(excluded)
		log.Info("%d phenotypes dropped due to having less than %d cases/controls", len(excluded), minCases)
	}
	return excluded, nil
}
