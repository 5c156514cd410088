// Package event provides the synchronous pub/sub bus and the event types
// that carry scheduler lifecycle notifications.
//
// The scheduling core never calls collaborators directly. Instead it
// publishes events on a Bus owned by the scheduler instance:
//
//	bus := event.NewBus()
//	bus.Subscribe("allocation.completed", func(e event.Event) {
//		done := e.(event.AllocationCompletedEvent)
//		fmt.Println(done.TaskID, "->", done.WorkerID)
//	})
//
// Handlers run synchronously in the publisher's goroutine and must not
// block. Hosts that prefer polling over callbacks can attach a Recorder,
// which buffers events for later draining:
//
//	rec := event.NewRecorder(bus)
//	// ... later ...
//	for _, e := range rec.Drain() { ... }
//
// Event type strings follow the "category.action" convention
// (e.g. "allocation.completed", "worker.registered", "rebalance.started").
package event
