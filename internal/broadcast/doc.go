// Package broadcast implements the in-process hub that fans poll results out to live subscribers.
//
// Each subscriber owns a bounded channel. Publishing never blocks: a subscriber whose channel is
// full is dropped and its channel closed. A background sweeper sends keep-alive frames on a fixed
// interval so dead subscribers are pruned even when no poll changes.
package broadcast
