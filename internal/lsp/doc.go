// Package lsp connects the editor to language servers over WebSocket
// JSON-RPC 2.0 and exposes their features through the editor's provider
// registry.
//
// The package splits into four layers:
//
//   - Transport: one WebSocket, one JSON-RPC message per frame, a pending
//     request table, and handler dispatch for server-pushed traffic.
//   - Client: the initialize handshake, document synchronization, and typed
//     feature requests that degrade to empty answers on failure.
//   - Bridge: adapters that register one editor provider per advertised
//     server capability and translate coordinates at the boundary (the wire
//     is zero-based, the editor one-based).
//   - Connection: the lifecycle orchestrator. It keeps the server's copy of
//     the buffer current with monotonically increasing versions, routes
//     diagnostics into the marker store, and reconnects a bounded number of
//     times when an established connection drops.
//
// Languages route to servers through an Endpoint table; a language without
// an entry is rejected before any network activity.
package lsp
