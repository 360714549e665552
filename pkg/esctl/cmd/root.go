package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/complianceops/escalation-engine/pkg/esctl/client"
)

type Config struct {
	OutputWriter io.Writer
}

type runtimeState struct {
	server       string
	outputFormat string
	user         string
	userName     string
	caFile       string
	insecure     bool
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:   "esctl",
		Short: "Escalation engine CLI",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.server == "" {
				rt.server = os.Getenv("ESCTL_SERVER")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("ESCTL_OUTPUT")
			}
			if rt.user == "" {
				rt.user = os.Getenv("ESCTL_USER")
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if rt.server == "" {
				rt.server = "http://localhost:8080"
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&rt.server, "server", "s", "", "Escalation engine server URL")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.user, "user", "", "Acting user id for audit attribution")
	root.PersistentFlags().StringVar(&rt.userName, "user-name", "", "Acting user display name")
	root.PersistentFlags().StringVar(&rt.caFile, "ca-file", "", "Path to a CA bundle for the server")
	root.PersistentFlags().BoolVar(&rt.insecure, "insecure-skip-tls-verify", false, "Skip TLS certificate verification")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewChainCommand(),
		NewEventCommand(),
		NewInstanceCommand(),
		NewAuditCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	return "table"
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func buildClient(rt *runtimeState) (*client.Client, error) {
	options := []client.Option{
		client.WithServer(rt.server),
		client.WithUserAgent("esctl"),
	}
	if rt.user != "" {
		options = append(options, client.WithUser(rt.user, rt.userName))
	}
	if rt.caFile != "" || rt.insecure {
		options = append(options, client.WithTLSConfig(rt.caFile, rt.insecure))
	}
	return client.New(options...)
}
