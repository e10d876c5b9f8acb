// Package trace is the diagnostic channel of importwaterfall.
//
// It records what the tool itself is doing (sampling runs, parsing,
// rendering) so slow or hung profiling sessions can be explained.
// It never touches the import trace being analyzed.
//
// # Usage
//
//	importwaterfall --trace=- --trace-level=detail requests
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Reserved for failures
//   - LevelPhase: Driver and acquire/parse/render boundaries
//   - LevelDetail: Individual interpreter runs
//   - LevelDebug: Everything, including skipped trace lines
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePhase, "parse", parentID)
//	defer span.End("")
package trace
