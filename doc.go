// Package gcra implements a distributed rate limiter using the Generic Cell
// Rate Algorithm (GCRA). Limiter state for a key is a single "theoretical
// arrival time" kept in Redis, and every decision runs as one Lua script so
// that any number of processes can enforce the same limit per key.
//
// A request may cost more than one token. When the bucket cannot cover the
// whole cost the request is granted whatever is left instead of being denied;
// check Result.Allowed against the requested cost.
//
// The script is registered once per Limiter with SCRIPT LOAD and invoked by
// its SHA1. If the store forgets it (restart, SCRIPT FLUSH) the Limiter loads
// it again and retries the call once.
//
// Allow is not idempotent: a call that times out may still have consumed
// tokens in the store, so the package never retries it.
//
// Redis drivers are provided for radix/v3 (NewRadixClient) and go-redis/v9
// (NewGoRedisClient). MemoryClient runs the same algorithm in process.
// Find the operator CLI under cmd/gcractl.
package gcra
