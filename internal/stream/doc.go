// Package stream implements the client side of a streamed chat exchange: one request to the chat
// endpoint, a sequence of text fragments merged into a single growing assistant message, and the
// terminal [DONE] sentinel or a transport failure that ends the exchange.
//
// The exchange is modelled as a session state machine. Step is a pure transition function from
// the current Session and an Event to the next Session and the Effects to perform. Accumulator
// drives Step from the events of a Source and forwards the effects to a Sink.
package stream
