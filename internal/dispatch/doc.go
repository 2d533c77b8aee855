// Package dispatch owns every display surface.
//
// The Dispatcher is a single-owner loop. It is the only goroutine that
// touches the surface registry, the blob assembler, or calls surface-mutating
// toolkit methods. Everything else (the ingestion listener, toolkit
// callbacks, filesystem workers, the status API) communicates intent by
// sending events.Event values on the dispatch channel.
//
// Each turn (Step):
//   - drain every pending native toolkit event (close requests)
//   - handle at most one queued dispatch event
//
// Surface lifecycle:
//
//	Creating -> Visible(Pinned) -> Visible(Unpinned) -> Closing -> removed
//	Creating -> Hidden (export-only, no console)      -> Closing -> removed
//
// A visible surface is created always-on-top and a SurfaceCreated event
// unpins it on the next turn. Closing is terminal; closed ids are never
// reused.
//
// Headless mode:
//   - one hidden surface is created when the loop starts
//   - every request is rendered into it through vitrineRender
//   - results are emitted but never close it
//
// Error handling:
//   - surface construction failure: logged, request dropped
//   - filesystem failure: logged by the worker, surface stays open
//   - send failure: debug-logged, never fatal
//   - unrecognized bridge command: ignored
package dispatch
