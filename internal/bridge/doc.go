// Package bridge exposes a Session to out-of-process callers.
//
// Dispatcher maps named method calls onto Session.Run and Session.Stop and
// translates failures into coded errors. Server carries those calls over a
// JSON-lines stream, one request or response object per line, and handles
// every call on its own goroutine so a stop can overtake a run in flight.
package bridge
