// Package profile provides optional runtime profiling of ghostwriter runs.
//
// Profiling uses [github.com/pkg/profile] and is compiled in only with the
// "pprof" build tag:
//
//	go build -tags pprof .
//	ghostwriter --pprof-mode=cpu compile --no-watch
//
// Without the tag, [Modes] is empty and [Config.Start] returns a no-op.
//
// A Config is a function returning its settings, so options compose without
// an intermediate struct:
//
//	stop := profile.New(
//		profile.WithMode("heap"),
//		profile.WithPath(dir),
//	).Start()
//	defer stop.Stop()
package profile
