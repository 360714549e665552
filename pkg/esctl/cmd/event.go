package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/esctl/client"
	"github.com/complianceops/escalation-engine/pkg/esctl/output"
)

func NewEventCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage deadline events",
	}
	cmd.AddCommand(
		newEventListCommand(),
		newEventGetCommand(),
		newEventApplyCommand(),
		newEventEvaluateCommand(),
	)
	return cmd
}

func newEventListCommand() *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deadline events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			events, err := apiClient.Events().List(context.Background(), client.EventListOptions{OpenOnly: openOnly})
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, events)
			case output.FormatTable:
				output.WriteEventTable(rt.Writer(), events)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "Only list open events")
	return cmd
}

func newEventGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Get a deadline event by id",
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
			event, err := apiClient.Events().Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, event)
		},
	}
}

func newEventApplyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update a deadline event from a JSON definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read event definition: %w", err)
			}
			var event escalation.DeadlineEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("failed to parse event definition: %w", err)
			}
			if event.ID == "" {
				return fmt.Errorf("event id must not be empty")
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			saved, err := apiClient.Events().Put(context.Background(), &event)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "event %s saved\n", saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the event definition (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate ID",
		Short: "Evaluate an event outside the scheduled pass",
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
			inst, err := apiClient.Events().Evaluate(context.Background(), args[0])
			if err != nil {
				return err
			}
			if inst == nil {
				_, _ = fmt.Fprintf(rt.Writer(), "event %s is not overdue; no escalation\n", args[0])
				return nil
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable {
				output.WriteInstanceTable(rt.Writer(), []escalation.Instance{*inst})
				return nil
			}
			return output.WriteObject(rt.Writer(), format, inst)
		},
	}
}
