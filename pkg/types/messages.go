package types

// HTTP (device -> relay)
// POST /rooms                 body: Room            201 | 409 taken | 400
// HEAD /rooms/{code}                                200 | 404
// GET /rooms/{code}                                 200 {version, room} | 404
// PATCH /rooms/{code}         body: Patch           204 | 412 stale | 404 | 400
//   If-Match: <version>       optional; without it the write is unconditional
//   Patch: { <room field>: <json value> | null }    top-level fields only, shallow merge
// DELETE /rooms/{code}                              204
//
// WebSocket GET /ws?code=<code> (relay -> device)
// RoomSnapshot:
//   version: number
//   room: Room                 the whole record, replaces local state
//
// RoomClosed: {}               room deleted or never existed; the socket closes after it
//
// Error:
//   error: string
