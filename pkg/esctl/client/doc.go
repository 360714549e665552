// Package client implements the HTTP client for the esctl CLI to communicate
// with the escalation engine API server, with methods for chains, deadline
// events, escalation instances and the audit trail.
package client
