// Package api hosts the HTTP server: route registration for the
// escalation controllers, static frontend serving and the metrics
// endpoint.
package api
