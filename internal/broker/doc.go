// Package broker provides the list-and-key store that coordinates folio
// workers.
//
// Every backend implements Store with the same semantics: lists are ordered
// head to tail, producers push to the head, claims pop from the tail, and Move
// atomically pops the tail of one list and pushes it to the head of another.
// Move is the only inter-process coordination primitive the claim engine
// relies on, so each backend guarantees that a value moved by one caller can
// never be observed by another caller's Move.
//
// Backends:
//   - SQLite (default): one WAL database shared by every process on the host,
//     each mutation in an immediate transaction.
//   - Redis: RPOPLPUSH/LPUSH/RPUSH/LREM against a server shared across hosts.
//   - Memory: in-process lists for tests.
package broker
