package redstruct

const (
	// DefaultPrefix is the namespace prefix used when WithPrefix is not given.
	DefaultPrefix = "rs"

	defaultPageSize = 1000
)

type config struct {
	prefix    string
	codec     Codec
	serialize bool
	logger    Logger
	logTag    string
	pageSize  int64
	reversed  bool
}

func newConfig(opts []Option) config {
	c := config{
		prefix:   DefaultPrefix,
		logger:   defaultLogger,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.codec == nil {
		c.codec = JSON
	}
	return c
}

// Option customizes a structure at construction time.
type Option func(*config)

// WithPrefix sets the namespace prefix. Keys are stored as "prefix:type:name".
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithCodec selects the codec and turns serialization on.
// If not provided, JSON is used whenever serialization is enabled.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		if codec != nil {
			c.codec = codec
			c.serialize = true
		}
	}
}

// WithSerialize toggles serialization of scalar values. Non-scalar value
// types are always encoded with the codec.
func WithSerialize(on bool) Option {
	return func(c *config) {
		c.serialize = on
	}
}

// WithLogger specifies a logger for operation logging.
// If not provided, a no-op logger is used (no logging).
func WithLogger(logger Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogTag sets a tag prefix for all log messages.
// Useful for identifying the source of logs when many structures share a logger.
func WithLogTag(tag string) Option {
	return func(c *config) {
		c.logTag = tag
	}
}

// WithPageSize sets how many elements iterators fetch per round trip.
func WithPageSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithReversed makes a SortedSet iterate and rank in descending score order
// by default. Other structures ignore it.
func WithReversed() Option {
	return func(c *config) {
		c.reversed = true
	}
}
