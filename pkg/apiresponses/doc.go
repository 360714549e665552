// Package apiresponses provides standardized HTTP API response helpers
// (error, not-found, conflict, etc.) shared between the api and engine
// packages without import cycles.
package apiresponses
