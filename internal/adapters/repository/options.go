package repository

type storeConfig struct {
	limit int
}

// Option configures a Store.
type Option func(*storeConfig)

// WithLimit sets how many records are retained. Values below one keep the
// default.
func WithLimit(limit int) Option {
	return func(c *storeConfig) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

func newStoreConfig(opts []Option) storeConfig {
	c := storeConfig{limit: DefaultLimit}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
