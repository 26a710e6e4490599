// Package job defines the stateful representation of a scheduled command
// within the ravel scheduler.
//
// A Job carries an argv vector, a GPU/priority/memory-tag resource
// request, optional dependency ids, and the lifecycle fields maintained
// by the job store: Status, timestamps, the GPU indices assigned at
// claim time, and the captured child-process outcome.
//
// Job values are snapshots returned by the store. They are not intended
// to be constructed manually outside of the store and its tests; state
// transitions must go through the store's Claimer operations so that
// claim uniqueness and terminal finality hold.
package job
