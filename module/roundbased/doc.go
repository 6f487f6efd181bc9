// Package roundbased drives multi-round threshold protocols.
//
// A protocol execution is described by an ordered list of [Round]s and a
// [Finalizer]. The [Engine] runs the same cycle for every round:
//
//	transition(previous messages) -> (round r, outgoing messages)
//	send outgoing messages through the module.Stream
//	wait until the [Sink] holds all messages of round r
//	take them, they become the input of the next round
//
// After the last round, the finalizer consumes the last collected batch and
// produces the result (a key share, a signature, ...). Key generation and
// signing differ only in their round lists.
//
// # Wiring
//
// A fresh Sink, Stream and Engine must be created for every protocol
// execution. The Sink must be registered with the network listener before
// Start is called (otherwise early messages are lost) and unregistered when the
// execution ends or is abandoned:
//
//	sink, _ := roundbased.NewSink(sessionID, parties-1)
//	stop := relay.Listen(log, client, sink)
//	defer stop()
//	engine := roundbased.NewEngine(log, rounds, finalizer, nil, stream, sink)
//	result, err := engine.Start(ctx)
package roundbased
