// Package approval implements the human-in-the-loop workflow behind Review
// and undeclared actions.  It creates and deduplicates durable approval
// requests against the store, polls them to a terminal state either blocking
// the caller (Await) or returning a retry-later signal (PollOrRequest), and
// fans decision events out on a queue.
package approval
