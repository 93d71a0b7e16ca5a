// Package platform provides the client handle for the hosted data platform.
//
// The platform owns persistence, transactional integrity, query planning and
// realtime fan-out; this package only assembles requests and relays change
// events. A Client bundles two transports:
//   - REST: resty over a retrying HTTP transport, for table reads/writes and
//     remote procedure calls
//   - Realtime: a websocket connection delivering change events
//     (insert/update/delete) per table, consumed as opaque invalidation
//     triggers
//
// Handles are cheap to construct and are replaced wholesale by the connection
// lifecycle manager rather than repaired in place; consumers must not assume
// a captured handle stays valid forever.
//
// Example Usage:
//
//	client, err := platform.New(platform.Config{URL: url, Key: key}, logger)
//	var posts []Post
//	err = client.From("posts").Eq("status", "published").Select(ctx, &posts)
//
//	ch := client.Realtime().Channel("realtime:content")
//	unsubscribe := ch.Subscribe(platform.Filter{Table: "posts"}, onChange)
package platform
