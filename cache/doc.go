// Package cache provides a content-addressable cache for remote-call results.
//
// Keys are SHA-256 digests over the canonical JSON of a namespace, a
// parameter map and a cache-format version, so logically identical requests
// map to the same entry regardless of map construction order. Entries may
// reference artifact files; a lookup treats an entry whose artifacts have
// disappeared as a miss. Store faults are logged and absorbed: caching is an
// optimization and never part of the correctness contract.
//
// FileStore persists entries as human-readable JSON under
// <dir>/<namespace>/<digest>.json with atomic whole-file replacement.
// MemoryStore keeps entries in process.
package cache
