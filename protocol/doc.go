// Package protocol defines the messages exchanged between snakepit clients
// and the match service, and the JSON codec that carries them over gRPC.
//
// The service is registered by hand rather than generated from a .proto
// file, so every request and response is a plain Go struct encoded with the
// "json" content subtype.
package protocol
