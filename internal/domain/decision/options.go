package decision

// Default decision thresholds.
const (
	// DefaultStage3Threshold is the minimum renormalized Stage3 probability
	// required to report Stage3.
	DefaultStage3Threshold = 0.60
	// DefaultAmbiguityMargin is the top-two gap below which the lower
	// severity class wins.
	DefaultAmbiguityMargin = 0.15
)

// Option applies a configuration option to the Corrector.
type Option func(*Corrector)

// WithStage3Threshold sets the Stage3 confidence bar. Values outside (0,1]
// are ignored.
func WithStage3Threshold(threshold float64) Option {
	return func(c *Corrector) {
		if threshold > 0 && threshold <= 1 {
			c.stage3Threshold = threshold
		}
	}
}

// WithAmbiguityMargin sets the tie-break margin. Values outside [0,1) are
// ignored; zero disables the tie-break.
func WithAmbiguityMargin(margin float64) Option {
	return func(c *Corrector) {
		if margin >= 0 && margin < 1 {
			c.ambiguityMargin = margin
		}
	}
}
