// Package ws is the websocket observer transport for the tracker.
//
// Hub.ServeHTTP upgrades a connection and attaches it to the observer
// registry. A new connection replaces the previous one: the older socket is
// closed and stops receiving pushes. Message format sent to clients:
//
//	{"event": "replay", "data": [ /* stored results, newest first */ ]}
//	{"event": "photo",  "data": { /* one newly stored result */ }}
//
// The replay event is always the first message on a connection and is sent
// even when the store is empty. Errors are never sent to observers.
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/observe.
package ws
