// Package session implements the engine that runs one request.
//
// A Session streams candidates from a scraper, asks the decider what to do
// with each account and performs the resulting calls with bounded
// concurrency. Its status moves through
//
//	Initial -> Running <-> RateLimited -> Completed | Stopped | Error | AwaitingUntilRecur
//
// and AwaitingUntilRecur (or any other ended status) returns to Initial via
// Rewind. Every change that matters to observers is reported to a Sink as an
// Event carrying an Info snapshot.
//
// Rate-sensitive calls (Block, Mute, BlockAndUnBlock) are flushed as awaited
// batches, optionally followed by a delay; UnBlock, UnMute and UnFollow are
// dispatched as soon as they are decided. All calls of a page complete before
// the next page is requested.
package session
