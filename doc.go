// Package arbor is an incremental source-analysis engine for class-based
// languages. It keeps a model of every file's syntax tree, the declared
// class hierarchy and a cross-file relationship index, and keeps them fresh
// as files change without re-analyzing the whole project on every edit.
// Java and TypeScript are parsed with tree-sitter.
//
// # Pipeline
//
// All work that mutates the model runs on one worker goroutine, which
// drains a priority queue of operations:
//
//  1. Context changes: analysis roots, content overlays, priority files
//     and subscriptions.
//  2. Analysis: files are read through the SourceProvider and parsed in
//     parallel; their classes are declared, and the changed files together
//     with every file importing them are resolved as one batch. Resolution
//     links supertypes, reports errors, records relationships in the index
//     and computes highlights, outline and navigation regions.
//  3. Lint: Risor rule scripts run against each resolved file.
//
// Results are delivered to a Listener by a dispatcher goroutine, in order
// per file. Errors are always delivered; highlights, outline and
// navigation only for files subscribed with [Engine.SetSubscriptions].
//
// # Usage
//
//	e, err := arbor.New(
//		arbor.WithDatabase(".arbor/arbor.db"),
//		arbor.WithListener(l),
//	)
//	if err != nil { ... }
//	defer e.Close()
//
//	if err := e.Start(); err != nil { ... }
//	e.SetAnalysisRoots([]string{"/path/to/project"}, nil)
//	e.WaitIdle(ctx)
//
//	errs, err := e.GetErrors(ctx, "/path/to/project/src/Foo.java")
//	hover, err := e.GetHover(ctx, "/path/to/project/src/Foo.java", 42)
//
// # Queries
//
// Queries run on the worker at the highest priority, so they see a
// consistent model and never wait behind background analysis:
//
//   - [Engine.GetErrors] — problems found in a file, analyzing it first
//     when needed.
//   - [Engine.GetHover] — the declaration named at an offset.
//   - [Engine.FindReferences] — every recorded site related to the
//     declaration named at an offset.
//   - [Engine.TypeHierarchy] — direct supertypes and subtypes of a class.
//
// # Persistence
//
// With [WithDatabase], [Engine.Save] writes each root's resolved library
// cache, the relationship index and per-file records to SQLite. A later
// engine restores them when the root is added, so unchanged files are
// re-analyzed at the lowest priority while changed ones go first. Saved
// state is ignored when the rule scripts have changed since it was written.
package arbor
