// Package simpleasset provides a library for ingesting media assets and
// deriving secondary artifacts from them asynchronously, with pluggable
// repository, blob storage and job queue backends.
//
// Uploaded bytes are persisted in a key-addressed blob store, a metadata
// record is created per asset, and a processing job is enqueued on a durable
// queue. A worker pool (subpackage worker) leases jobs, runs kind-dispatched
// derivation (subpackage derive) and writes results back through the
// repository under a pending -> processing -> {completed, failed} state
// machine. Delivery is at-least-once: derivation is deterministic for the
// same input bytes and terminal writes are attempt-fenced, so re-running a
// job converges to the same state.
//
// Implementations of repositories (memory, Postgres), blob stores (memory,
// filesystem, S3) and queues (memory, Redis) are provided under subpackages.
package simpleasset
