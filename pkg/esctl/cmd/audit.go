package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/esctl/output"
)

func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(
		newAuditEventCommand(),
		newAuditChainCommand(),
	)
	return cmd
}

func newAuditEventCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "event EVENT_ID",
		Short: "Show the audit trail of a deadline event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditCommand(cmd, func(ctx context.Context, rt *runtimeState) ([]audit.Entry, error) {
				apiClient, err := buildClient(rt)
				if err != nil {
					return nil, err
				}
				return apiClient.Audit().ForEvent(ctx, args[0])
			})
		},
	}
}

func newAuditChainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chain CHAIN_ID",
		Short: "Show the administrative audit trail of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditCommand(cmd, func(ctx context.Context, rt *runtimeState) ([]audit.Entry, error) {
				apiClient, err := buildClient(rt)
				if err != nil {
					return nil, err
				}
				return apiClient.Audit().ForChain(ctx, args[0])
			})
		},
	}
}

func runAuditCommand(cmd *cobra.Command, fetch func(context.Context, *runtimeState) ([]audit.Entry, error)) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	entries, err := fetch(context.Background(), rt)
	if err != nil {
		return err
	}
	format := output.Format(rt.OutputFormat())
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.WriteObject(rt.Writer(), format, entries)
	case output.FormatTable:
		output.WriteAuditTable(rt.Writer(), entries)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
