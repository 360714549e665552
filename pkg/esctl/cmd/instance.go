package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/esctl/client"
	"github.com/complianceops/escalation-engine/pkg/esctl/output"
)

func NewInstanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage escalation instances",
	}
	cmd.AddCommand(
		newInstanceListCommand(),
		newInstanceGetCommand(),
		newInstanceSnoozeCommand(),
		newInstanceCancelSnoozeCommand(),
		newInstanceResolveCommand(),
	)
	return cmd
}

func newInstanceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List escalation instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			instances, err := apiClient.Instances().List(context.Background())
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, instances)
			case output.FormatTable:
				output.WriteInstanceTable(rt.Writer(), instances)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}
}

func newInstanceGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get EVENT_ID",
		Short: "Get the escalation instance for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			inst, err := apiClient.Instances().GetByEvent(context.Background(), args[0])
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, inst)
		},
	}
}

func newInstanceSnoozeCommand() *cobra.Command {
	var hours int
	var reason string

	cmd := &cobra.Command{
		Use:   "snooze EVENT_ID",
		Short: "Pause escalation for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			inst, err := apiClient.Instances().Snooze(context.Background(), args[0], client.SnoozeRequest{Hours: hours, Reason: reason})
			if err != nil {
				return err
			}
			printInstanceResult(rt, inst)
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "Snooze duration in hours")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the snooze")
	_ = cmd.MarkFlagRequired("hours")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newInstanceCancelSnoozeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-snooze EVENT_ID",
		Short: "Cancel an active snooze and resume escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			inst, err := apiClient.Instances().CancelSnooze(context.Background(), args[0])
			if err != nil {
				return err
			}
			printInstanceResult(rt, inst)
			return nil
		},
	}
}

func newInstanceResolveCommand() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve EVENT_ID",
		Short: "Resolve the escalation for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			inst, err := apiClient.Instances().Resolve(context.Background(), args[0], client.ResolveRequest{Notes: notes})
			if err != nil {
				return err
			}
			printInstanceResult(rt, inst)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")
	return cmd
}

func printInstanceResult(rt *runtimeState, inst *escalation.Instance) {
	output.WriteInstanceTable(rt.Writer(), []escalation.Instance{*inst})
}
