// Package api provides the HTTP REST API and WebSocket server for gadgetd.
//
// It exposes account signup and login, the gadget inventory and its
// lifecycle operations, and a live feed of gadget events.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Listing gadgets is public. Every other gadget route requires an
// "Authorization: Bearer <token>" header; a missing token is answered with
// 403 and a rejected one with 401. WebSocket clients first obtain a
// single-use ticket from POST /auth/ws-ticket and connect with ?ticket=,
// then send subscribe frames naming event types and, optionally, gadget IDs.
//
// Successful mutations are appended to the audit trail when one is
// configured; GET /audit-logs pages through it.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
