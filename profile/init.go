package profile

// Tag is the build tag that enables profiling, also used as the name of the
// default profile output directory.
const Tag = "pprof"

// Stopper stops a running profile and flushes its output.
type Stopper interface{ Stop() }

// Config functions return all supported profiling parameters.
type Config func() (mode, path string, quiet bool)

// New returns a Config with profiling disabled, then applies opts.
func New(opts ...func(Config) Config) Config {
	c := Config(func() (string, string, bool) { return "", "", true })

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// Start starts the profiler described by c.
//
// If the pprof build tag is unset, or the mode is empty or unknown, Start
// returns a no-op. Both Start and Stop are always safely callable.
func (c Config) Start() Stopper {
	if c == nil {
		return ignore{}
	}

	mode, path, quiet := c()

	if mode == "" {
		return ignore{}
	}

	return start(mode, path, quiet)
}

// WithMode returns a functional option for setting a profiler's mode.
func WithMode(mode string) func(Config) Config {
	return func(c Config) Config {
		_, path, quiet := c()

		return func() (string, string, bool) { return mode, path, quiet }
	}
}

// WithPath returns a functional option for setting a profiler's output path.
func WithPath(path string) func(Config) Config {
	return func(c Config) Config {
		mode, _, quiet := c()

		return func() (string, string, bool) { return mode, path, quiet }
	}
}

// WithQuiet returns a functional option for setting a profiler's quiet flag.
func WithQuiet(quiet bool) func(Config) Config {
	return func(c Config) Config {
		mode, path, _ := c()

		return func() (string, string, bool) { return mode, path, quiet }
	}
}

type ignore struct{}

func (ignore) Stop() {}
