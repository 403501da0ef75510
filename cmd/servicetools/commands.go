package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errFailedResponse = errors.New("remote call returned an error response")

func invokeCmd(g *globals) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "invoke <method> [args...]",
		Short: "Invoke a method through the cache",
		Long: "Invoke a method through the cache. Each argument is parsed as JSON " +
			"when possible and passed as a string otherwise.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			resp, err := rt.Service.Invoke(ctx, args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !quiet {
				if resp.OK() {
					color.New(color.FgGreen, color.Bold).Fprintln(out, "OK")
				} else {
					color.New(color.FgRed, color.Bold).Fprintf(out, "ERROR %s: %s\n", resp.ErrorCode(), resp.ErrorMessage())
				}
			}
			if err := printJSON(out, resp.Envelope()); err != nil {
				return err
			}
			if !resp.OK() {
				return errFailedResponse
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the response envelope")
	return cmd
}

func keyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "key <method> [args...]",
		Short: "Print the cache key of a call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rt.Service.Key(args[0], parseArgs(args[1:])...))
			return err
		},
	}
}

func checkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration, configure the backend and ping the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed).SprintFunc()

			rt, err := g.runtime(ctx)
			if err != nil {
				fmt.Fprintf(out, "%s configuration: %v\n", bad("✗"), err)
				return err
			}
			defer rt.Close(ctx)
			fmt.Fprintf(out, "%s configuration: %s backend %q\n", ok("✓"), rt.Service.Backend().Name(), rt.Service.Namespace())

			if err := rt.Ping(ctx); err != nil {
				fmt.Fprintf(out, "%s cache: %v\n", bad("✗"), err)
				return err
			}
			state := "enabled"
			if !rt.Service.Cache().Enabled() {
				state = "disabled"
			}
			fmt.Fprintf(out, "%s cache: %s\n", ok("✓"), state)
			return nil
		},
	}
}
