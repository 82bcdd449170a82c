// Package logs reads worker log files for the console.
//
// Last returns the trailing lines of a file with bounded memory; Follow polls
// for appended lines from an offset and only emits complete lines, so a worker
// caught mid-write is picked up on the next poll. A file that shrinks is
// treated as rotated and read again from the start.
package logs
