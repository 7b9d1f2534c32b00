// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Loggers are configured with functional options at creation time and are
// immutable afterwards; [Logger.Wrap] and [Logger.With] derive new loggers.
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("Kitchen"))
//
//	logger = logger.With(slog.String("file", path))
//	logger.Info("snippet expanded", slog.String("snippet", name))
//
// Every level has a context-aware variant. Context-unaware calls use
// [DefaultContextProvider].
//
// The package-level functions ([Info], [Config], ...) operate on a shared
// default logger writing to standard error. [WithContext] and [FromContext]
// carry a logger through a [context.Context]; workers and the compile
// scheduler log through the logger found in their context.
//
// Pretty output (the default) colorizes keys, values and levels with
// lipgloss styles. Colors are dropped automatically when the terminal does
// not support them.
package log
