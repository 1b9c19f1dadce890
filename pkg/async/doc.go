// Package async runs functions on their own goroutines and lets the caller
// wait for their results through a generic Future.
//
// The scheduler uses it to provision many topics at once: each topic gets a
// Future and WaitAll collects every failure instead of stopping at the first.
//
// # Usage
//
//	futures := make([]*async.Future[string], 0, len(topics))
//	for _, topic := range topics {
//	    futures = append(futures, async.Async(ctx, topic, ensure))
//	}
//	if _, err := async.WaitAll(futures...); err != nil {
//	    // err joins every failed topic
//	}
//
// A context cancelled before the goroutine starts work resolves the future
// with ctx.Err() and the function is never called.
package async
