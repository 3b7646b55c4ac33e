// Package preprocess prepares the long-format analysis table: an ordered
// chain of transforms over the sample frame followed by the melt stage.
package preprocess

import (
	"gomas/domain/frame"
	"gomas/internal/config"
	"gomas/internal/logger"
)

// Transform is one pipeline stage. Stages run strictly in order; each
// stage's output frame is the next stage's input. Stages may mutate the
// role lists (dummy encoding does) so downstream stages see the updated
// independent-variable schema.
type Transform func(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error)

// Pipeline applies the preprocessing stages to the selected sample table
type Pipeline struct {
	cfg *config.Config
	log *logger.Logger

	// Indicator columns generated by dummy encoding, excluded from the
	// continuous transform.
	indicators map[string]struct{}
}

// NewPipeline creates a preprocessing pipeline for one run
func NewPipeline(cfg *config.Config, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		log:        log,
		indicators: make(map[string]struct{}),
	}
}

// Run applies all wide-frame stages in order. Constant-column and
// dependent-domain violations abort the run; the remaining stages only
// shrink or rewrite the table and log what they changed.
func (p *Pipeline) Run(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	stages := []Transform{
		p.checkConstants,
		p.validateDependents,
		p.handleMissing,
		p.dummyEncode,
		p.transformContinuous,
		p.phewasFilter,
	}
	var err error
	for _, stage := range stages {
		f, err = stage(f, roles)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}
