// Package dispatch routes websocket events to the chat engine.
//
// Each inbound frame is decoded, rate limited, checked against recently
// acked ids and handled under a timeout. Events that carry an id get an
// ack frame with the handler's result or an error text.
package dispatch
