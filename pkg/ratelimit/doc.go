// Package ratelimit provides per-IP token-bucket rate limiting middleware
// for Gin HTTP servers, with automatic stale-entry cleanup.
package ratelimit
