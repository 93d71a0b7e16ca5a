/*
Package ws streams platform change events to browser clients.

# Overview

A client connects, subscribes to one or more cache domains ("content",
"messages", "notifications", "profiles"), and receives every realtime change
event for those domains as it arrives. When the platform client handle is
recreated the handler silently re-subscribes and notifies the browser, which
should refetch any views it was watching.

# Protocol

Client to gateway:

	{"type": "subscribe", "domain": "content"}
	{"type": "unsubscribe", "domain": "content"}
	{"type": "ping"}

Gateway to client:

	{"type": "system", "message": "...", "connection_id": "conn_..."}
	{"type": "subscribed", "domain": "content"}
	{"type": "change", "domain": "content", "event": "insert", "table": "posts", "payload": {...}}
	{"type": "connection", "state": "reconnected"}
	{"type": "pong"}
*/
package ws
