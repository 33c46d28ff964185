// Package delivery hands published change batches to their consumers.
//
// The core engine publishes one batch per committed unit of work through
// changefeed.Publisher. A Dispatcher implements that contract: it queues the
// batch without blocking the committing unit of work, then delivers it to
// every registered Sink concurrently, retrying transient failures with
// exponential backoff and parking exhausted deliveries in a DeadLetterQueue.
//
// Sinks shipped here:
//   - LocalBus fans batches out to in-process subscribers filtered by event type
//   - SQLiteOutbox stores batches durably for later relay
//   - RedisSink publishes batches as JSON on a Redis channel
//   - LogSink logs every batch
//
// Example:
//
//	outbox, err := delivery.NewSQLiteOutbox("./outbox.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dispatcher := delivery.NewDispatcher(
//	    delivery.WithSink("outbox", outbox),
//	    delivery.WithSink("log", delivery.NewLogSink(logger)),
//	    delivery.WithDeadLetters(delivery.NewInMemoryDeadLetters(delivery.DeadLetterConfig{})),
//	)
//	defer dispatcher.Close(context.Background())
//
//	engine, err := changefeed.New(tables, dispatcher)
//
// Delivery guarantees stop at one batch: nothing here orders or deduplicates
// batches across units of work.
package delivery
