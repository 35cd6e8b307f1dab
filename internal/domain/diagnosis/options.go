package diagnosis

import (
	"github.com/okian/patella/internal/domain/decision"
	"github.com/okian/patella/internal/domain/features"
)

const (
	defaultParallelism = 4
	defaultMaxFrames   = 64
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithBuilder sets the feature builder.
func WithBuilder(b *features.Builder) Option {
	return func(p *Pipeline) {
		if b != nil {
			p.builder = b
		}
	}
}

// WithCorrector sets the decision corrector.
func WithCorrector(c *decision.Corrector) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.corrector = c
		}
	}
}

// WithParallelism bounds how many feature vectors are built concurrently.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// WithMaxFrames caps the observations accepted per run.
func WithMaxFrames(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxFrames = n
		}
	}
}
