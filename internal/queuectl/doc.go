// Package queuectl implements the operator's queue and worker controls.
//
// Every operation is built on the broker primitives the claim engine uses, so
// it is safe to run next to live workers: Move transfers items one atomic
// move at a time, Dump is a plain range read, and Load only pushes. Worker
// liveness is judged from the pid entries workers register at startup and is
// best effort, since a recycled pid looks alive.
package queuectl
