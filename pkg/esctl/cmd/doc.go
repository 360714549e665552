// Package cmd implements the cobra command tree for the esctl CLI, including
// subcommands for chain administration, deadline events, escalation instance
// actions and audit trail inspection.
package cmd
