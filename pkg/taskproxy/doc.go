// Package taskproxy runs registered operations on a pool of worker
// goroutines and collects their results in a taskstore.Store. Callers
// submit a single call (Run) or a call spread over a slice of items
// (Map), the proxy splits a map into chunks and hands each chunk to
// whichever worker is free next, and results flow back keyed by
// wire.ChunkID regardless of which worker produced them.
package taskproxy
