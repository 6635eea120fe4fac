// Package ratelimit implements the sliding-window limiter that paces
// outbound requests to the upstream feed.
//
// The limiter never rejects: Acquire delays the caller until a slot frees
// up inside the trailing window, so at most maxRequests actions complete
// within any window-length interval. The only way out of a wait is the
// caller's context being cancelled.
package ratelimit
