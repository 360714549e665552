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

func NewChainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Manage escalation chains",
	}
	cmd.AddCommand(
		newChainListCommand(),
		newChainGetCommand(),
		newChainApplyCommand(),
		newChainDeactivateCommand(),
	)
	return cmd
}

func newChainListCommand() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalation chains",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			chains, err := apiClient.Chains().List(context.Background(), client.ChainListOptions{ActiveOnly: activeOnly})
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, chains)
			case output.FormatTable:
				output.WriteChainTable(rt.Writer(), chains)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active chains")
	return cmd
}

func newChainGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Get a chain by id",
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
			chain, err := apiClient.Chains().Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, chain)
		},
	}
}

func newChainApplyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update a chain from a JSON definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read chain definition: %w", err)
			}
			var chain escalation.ChainDefinition
			if err := json.Unmarshal(data, &chain); err != nil {
				return fmt.Errorf("failed to parse chain definition: %w", err)
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}

			var saved *escalation.ChainDefinition
			if chain.ID == "" {
				saved, err = apiClient.Chains().Create(context.Background(), &chain)
			} else {
				saved, err = apiClient.Chains().Update(context.Background(), &chain)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "chain %s saved\n", saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the chain definition (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newChainDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a chain; in-flight escalations keep running",
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
			if err := apiClient.Chains().Deactivate(context.Background(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "chain %s deactivated\n", args[0])
			return nil
		},
	}
}
