// Command servicetools invokes a configured LDAP or SOAP service through the
// response cache.
//
//	servicetools -c service.yaml invoke search 'dc=example,dc=org' '(cn=alice)'
//	servicetools -c service.yaml key GetQuote '{"symbol":"ACME"}'
//	servicetools -c service.yaml check
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/servicetools/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	logOutput  io.Writer
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "servicetools",
		Short:         "Cached LDAP and SOAP calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "servicetools.yaml", "Configuration file")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if off, _ := cmd.Flags().GetBool("no-color"); off {
			color.NoColor = true
		}
		if g.logOutput == nil {
			g.logOutput = cmd.ErrOrStderr()
		}
		return nil
	}

	cmd.AddCommand(
		invokeCmd(g),
		keyCmd(g),
		checkCmd(g),
	)
	return cmd
}

func (g *globals) runtime(ctx context.Context) (*config.Runtime, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	return config.Build(ctx, cfg, config.Env{LogOutput: g.logOutput})
}

// parseArgs reads each argument as JSON and falls back to the raw string.
func parseArgs(raw []string) []any {
	out := make([]any, 0, len(raw))
	for _, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			v = s
		}
		out = append(out, v)
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}
