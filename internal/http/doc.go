// Package http provides HTTP handlers and middleware for the intake API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. The
//     token is returned in the body and also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - POST /logout: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and
//     clears the cookie.
//   - GET /availability?date=YYYY-MM-DD[&staff_id=...]: resolves the slot
//     grid for one day. Without staff_id the whole roster is consulted and
//     open slots carry the free staff identifiers.
//   - GET /requests, POST /requests/ask, POST /requests/meet,
//     GET /requests/{id}: counseling request listing, submission, and reads.
//     Listing accepts mine, kind, status, staff_id, and past query filters.
//   - POST /requests/{id}/approve|disapprove|cancel|complete|reply|thread-status:
//     lifecycle actions exchanging the `requestDTO` payload defined in
//     request_handler.go.
//   - GET /users, POST /users, GET /users/{id}, PUT /users/{id}: administrator
//     controlled account management exchanging the `userDTO` payload defined
//     in user_handler.go. GET /staff returns the bookable roster for any
//     authenticated principal.
//   - GET /healthz: liveness and readiness probe. GET /metrics: Prometheus
//     collectors when configured.
//
// All endpoints except /login, /healthz, and /metrics require a valid session
// token. Request/response DTOs live alongside their respective handlers so
// tests and documentation share the same ground truth.
package http
