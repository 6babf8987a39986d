// Package storage keeps the run history of scheduled tasks.
//
// A Store is written through a Recorder, which plugs into a sked.Engine as an
// observer and moves disk I/O off the dispatch goroutine.
package storage
