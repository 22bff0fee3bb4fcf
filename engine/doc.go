// Package engine ties scanning, graph building and planning together.
//
// An Engine owns the latest Snapshot of a source tree. Scan replaces the
// snapshot; Resolve, Generate and Check read whichever snapshot is current
// when they start and never change it, so they may run concurrently with
// each other and with a scan. Every operation is logged, traced and counted.
package engine
