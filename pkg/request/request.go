// Package request defines the data model of a single call sent by the client.Client.
//
// ClientConfig holds the defaults set once at client construction.
// CallConfig is an immutable per-call definition, see the With*/And* methods.
// Merge combines two configurations, the overlay wins field by field.
//
// Response is the success payload of a call.
// Failed calls are rejected with a StatusError (non-2xx response)
// or a TransportError (network failure, abort, unreadable body).
package request
