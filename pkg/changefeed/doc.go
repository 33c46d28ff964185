/*
Package changefeed turns persistence mutations made inside one unit of work
into a deduplicated batch of change notifications, published once and only
when the unit of work commits.

# Overview

The persistence runtime reports mutations through the seven-method Hooks
contract. Each in-flight unit of work owns a UnitOfWork that buffers
(entity, event type) tuples; the runtime talks to it through a Gate, which
drops mutations of classes and fields that are not eventable.

	inv := metadata.NewInventory()
	inv.MustRegister(metadata.ClassSpec{Class: "Chassis", Eventable: true})
	tables, err := inv.Build()
	if err != nil {
	    log.Fatal(err)
	}

	engine, err := changefeed.New(tables, publisher)
	if err != nil {
	    log.Fatal(err)
	}

	hooks := engine.Begin(ctx)
	hooks.ResourceAdded(chassis)
	hooks.BeforeCompletion()
	hooks.OnCompletion() // publishes [ResourceAdded@/redfish/v1/Chassis/1]

# Commit pipeline

On BeforeCompletion every buffered tuple is normalized: complementary
entities only report updates, and entities reported through an origin keep
alerts and status changes but otherwise report updates. On OnCompletion the
buffer is grouped by the event source context of each resolved entity:

  - a URI with any ADDED tuple reports exactly ResourceAdded
  - otherwise a URI with any REMOVED tuple reports exactly ResourceRemoved
  - otherwise every distinct type is reported, in canonical order

The resulting batch is handed to the Publisher if it is non-empty. OnFailure
discards the buffer and publishes nothing.

# Concurrency

A UnitOfWork is owned by exactly one unit of work and is not safe for
concurrent use. An Engine and its metadata tables are safe for concurrent use;
call Begin once per unit of work.
*/
package changefeed
