// Package watch schedules compile passes over a project tree.
//
// A pass walks the tree, selects files with a [Filter], and rewrites each
// one with a [snippet.Parser]. Passes run either in the calling goroutine or
// on a [Pool] of long-lived workers, each owning its own parser and template
// engine.
//
// [Scheduler.Watch] runs a pass, then follows two file-system feeds: the
// snippet search paths, where any change triggers a pass, and the project
// tree, where only changes to content recorded in the [Checksums] table do.
// Triggers are debounced by a window that grows with the duration of the
// previous pass, and passes never overlap.
package watch
