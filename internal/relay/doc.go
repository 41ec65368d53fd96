// Package relay forwards the brokerage market-data feed to browser clients.
//
// Every connected client gets its own session: one dedicated upstream
// websocket, one downstream sink, one forwarding goroutine. Sessions move
// through Connecting -> Authorizing -> Streaming -> Closed and never share
// an upstream socket; a failure tears down only the affected session.
package relay
