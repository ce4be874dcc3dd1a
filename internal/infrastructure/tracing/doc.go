// Package tracing tags HTTP requests with request IDs and writes access
// logs.
//
// Clients may send X-Request-ID; otherwise a UUID is generated. The ID is
// echoed in the response, stored in the request context and attached to
// the access log entry, so a terminal session can be traced back to the
// upgrade request that opened it.
package tracing
