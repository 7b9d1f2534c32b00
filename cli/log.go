package cli

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/log"
)

// logFormat is a custom type that configures the logger format as a side
// effect of parsing via encoding.TextUnmarshaler.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler.
// As Kong parses the --log-format flag, this method is called, allowing us
// to configure the logger early enough to affect error messages during parsing.
func (f *logFormat) UnmarshalText(text []byte) error {
	*f = logFormat(text)
	log.Config(log.WithFormat(log.ParseFormat(string(*f))))

	return nil
}

// logLevel is a custom type that configures the logger level as a side
// effect of parsing via encoding.TextUnmarshaler.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *logLevel) UnmarshalText(text []byte) error {
	*l = logLevel(text)
	log.Config(log.WithLevel(log.ParseLevel(string(*l))))

	return nil
}

type logConfig struct {
	Level      logLevel  `default:"info"    enum:"${logLevelEnum}"  help:"Set log level."`
	Format     logFormat `default:"text"    enum:"${logFormatEnum}" help:"Set log format."`
	TimeLayout string    `default:"RFC3339"                         help:"Set timestamp format."`
	Caller     bool      `default:"false"                           help:"Include caller information."       negatable:""`
	Pretty     bool      `default:"true"                            help:"Enable colorized pretty printing." negatable:""`

	// explicit holds the names of flags given on the command line.
	explicit map[string]bool
}

// logFlag describes one logger flag recognized by [logConfig.scan].
type logFlag struct {
	boolean bool
	set     func(f *logConfig, value string) error
	option  func(f *logConfig) log.Option
}

var logFlags = map[string]logFlag{
	"level": {
		set:    func(f *logConfig, v string) error { return f.Level.UnmarshalText([]byte(v)) },
		option: func(f *logConfig) log.Option { return log.WithLevel(log.ParseLevel(string(f.Level))) },
	},
	"format": {
		set:    func(f *logConfig, v string) error { return f.Format.UnmarshalText([]byte(v)) },
		option: func(f *logConfig) log.Option { return log.WithFormat(log.ParseFormat(string(f.Format))) },
	},
	"time-layout": {
		set: func(f *logConfig, v string) error {
			f.TimeLayout = v
			log.Config(log.WithTimeLayout(v))

			return nil
		},
		option: func(f *logConfig) log.Option { return log.WithTimeLayout(f.TimeLayout) },
	},
	"caller": {
		boolean: true,
		set: func(f *logConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}

			f.Caller = b
			log.Config(log.WithCaller(b))

			return nil
		},
		option: func(f *logConfig) log.Option { return log.WithCaller(f.Caller) },
	},
	"pretty": {
		boolean: true,
		set: func(f *logConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}

			f.Pretty = b
			log.Config(log.WithPretty(b))

			return nil
		},
		option: func(f *logConfig) log.Option { return log.WithPretty(f.Pretty) },
	},
}

func (*logConfig) vars() kong.Vars {
	return kong.Vars{
		"logLevelEnum":  strings.Join(slices.Collect(log.Levels()), ","),
		"logFormatEnum": strings.Join(slices.Collect(log.Formats()), ","),
	}
}

func (*logConfig) group() kong.Group {
	var group kong.Group

	group.Key = "log"
	group.Title = "Logging options"

	return group
}

func (f *logConfig) options() []log.Option {
	return []log.Option{
		log.WithLevel(log.ParseLevel(string(f.Level))),
		log.WithFormat(log.ParseFormat(string(f.Format))),
		log.WithTimeLayout(f.TimeLayout),
		log.WithCaller(f.Caller),
		log.WithPretty(f.Pretty),
	}
}

func (f *logConfig) start(ctx context.Context) {
	log.Config(f.options()...)

	log.DebugContext(ctx, "logger initialized",
		slog.String("level", string(f.Level)),
		slog.String("format", string(f.Format)),
		slog.String("time", f.TimeLayout),
		slog.Bool("caller", f.Caller),
		slog.Bool("pretty", f.Pretty),
	)
}

// override returns a function applying the logging section of a project
// configuration. Flags given explicitly on the command line still win.
func (f *logConfig) override(ctx context.Context) func(config.Logging) {
	return func(l config.Logging) {
		opts := l.Options()

		for _, name := range slices.Sorted(maps.Keys(f.explicit)) {
			opts = append(opts, logFlags[name].option(f))
		}

		log.Config(opts...)

		log.DebugContext(ctx, "project logging applied",
			slog.String("level", l.Level),
			slog.String("format", l.Format),
			slog.String("time", l.DateFmt),
			slog.Any("flags", slices.Sorted(maps.Keys(f.explicit))),
		)
	}
}

// scan performs an early pass over command-line arguments to extract and
// apply logger configuration before Kong begins parsing. This ensures the
// logger is configured properly regardless of flag position on the command
// line, and records which flags were given explicitly.
func (f *logConfig) scan(args []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return
		}

		negated := strings.HasPrefix(arg, "--no-log-")
		if !negated && !strings.HasPrefix(arg, "--log-") {
			continue
		}

		name, value, assigned := strings.Cut(arg, "=")
		name = strings.TrimPrefix(strings.TrimPrefix(name, "--no-log-"), "--log-")

		flag, ok := logFlags[name]
		if !ok {
			continue
		}

		switch {
		case !flag.boolean:
			if negated {
				continue
			}

			// Non-boolean flag: consume next arg as value if not assigned
			if !assigned {
				if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
					continue
				}

				value = args[i+1]
				i++
			}

		case !assigned:
			value = strconv.FormatBool(!negated)

		default:
			b, err := strconv.ParseBool(value)
			if err != nil {
				continue
			}

			value = strconv.FormatBool(b != negated)
		}

		if err := flag.set(f, value); err != nil {
			continue
		}

		if f.explicit == nil {
			f.explicit = make(map[string]bool)
		}

		f.explicit[name] = true
	}
}
