package heap

// defaultAlignment is the quantum `A` the spec calls "typically 8": the
// header width and the rounding quantum for every payload size and block
// boundary.
const defaultAlignment = 8

// Config mirrors the teacher allocator package's Config/Option pattern:
// a small value object built through functional options rather than a
// constructor with a long parameter list.
type Config struct {
	// Alignment is the byte quantum A. Must be a power of two and at
	// least 8 (large enough for the header word and, on the Explicit
	// variant, for one free-list offset). An invalid value is silently
	// replaced by defaultAlignment, the same defensive-default posture
	// the teacher's own defaultConfig() uses for its numeric fields.
	Alignment int

	// EnableDebug is carried in the resolved Config; neither variant's
	// Dump reads it, so Dump output is the same whether it is set or not.
	// It never changes allocation behavior.
	EnableDebug bool
}

// Option configures a Config.
type Option func(*Config)

// WithAlignment overrides the default alignment quantum.
func WithAlignment(a int) Option {
	return func(c *Config) { c.Alignment = a }
}

// WithDebug sets Config.EnableDebug.
func WithDebug(enabled bool) Option {
	return func(c *Config) { c.EnableDebug = enabled }
}

func defaultConfig() Config {
	return Config{
		Alignment:   defaultAlignment,
		EnableDebug: false,
	}
}

func resolveConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Alignment <= 0 || cfg.Alignment%8 != 0 || !isPowerOfTwo(cfg.Alignment) {
		cfg.Alignment = defaultAlignment
	}

	return cfg
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
