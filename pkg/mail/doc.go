// Package mail sends escalation notification emails over SMTP with
// retries and an asynchronous send queue.
package mail
