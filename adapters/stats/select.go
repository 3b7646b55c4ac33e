package stats

import (
	"gomas/internal/config"
	"gomas/internal/errors"
	"gomas/ports"
)

// ForConfig selects the model fitting strategy once at configuration
// resolution time. Quantitative runs use the linear-model choice, binary
// runs the binary-model choice.
func ForConfig(cfg *config.Config) (ports.ModelFitter, error) {
	if cfg.Quantitative {
		switch cfg.LinearModel {
		case "lm":
			return NewLinearFitter(), nil
		case "glm":
			return NewGLMFitter(), nil
		default:
			return nil, errors.Newf(errors.CodeConfigInvalid, "unknown linear model %q", cfg.LinearModel)
		}
	}
	switch cfg.BinaryModel {
	case "firth":
		return NewFirthFitter(), nil
	case "logistic":
		return NewLogisticFitter(), nil
	default:
		return nil, errors.Newf(errors.CodeConfigInvalid, "unknown binary model %q", cfg.BinaryModel)
	}
}
