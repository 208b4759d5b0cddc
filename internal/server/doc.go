// Package server exposes the trigger, query and notification endpoints
// over HTTP and WebSocket.
package server
