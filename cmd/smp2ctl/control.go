package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"smp2client/client"
	"smp2client/message"
	"strings"

	"github.com/spf13/cobra"
)

type callFunc func(ctx context.Context, cli *client.Client) (json.RawMessage, error)

func (a *app) controlCommands() []*cobra.Command {
	simple := func(use, short string, method func(*client.Client, context.Context) (json.RawMessage, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.call(cmd, func(ctx context.Context, cli *client.Client) (json.RawMessage, error) {
					return method(cli, ctx)
				})
			},
		}
	}

	helloCmd := &cobra.Command{
		Use:   "hello [name]",
		Short: "Ask the simulator to greet name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, cli *client.Client) (json.RawMessage, error) {
				return cli.Hello(ctx, args[0])
			})
		},
	}

	modelCmd := &cobra.Command{
		Use:   "model-request",
		Short: "Send an operation to a named model",
		Example: `  smp2ctl model-request --operation reset --model counter1
  smp2ctl model-request --operation set --model counter1 --param value=3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			operation, _ := cmd.Flags().GetString("operation")
			model, _ := cmd.Flags().GetString("model")
			raw, _ := cmd.Flags().GetStringArray("param")
			extra, err := parseParams(raw)
			if err != nil {
				return err
			}
			return a.call(cmd, func(ctx context.Context, cli *client.Client) (json.RawMessage, error) {
				return cli.ModelRequest(ctx, operation, model, extra)
			})
		},
	}
	modelCmd.Flags().String("operation", "", "Operation to perform on the model")
	modelCmd.Flags().String("model", "", "Name of the model")
	modelCmd.Flags().StringArray("param", nil, "Extra parameter as key=value; JSON values are decoded, anything else is sent as a string")
	_ = modelCmd.MarkFlagRequired("operation")
	_ = modelCmd.MarkFlagRequired("model")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Send one call per line, read from file or stdin",
		Long: `Each line holds a method name optionally followed by a JSON object of
parameters, e.g.

  hold
  model_request {"operation":"reset","model":"counter1"}
  run

Blank lines and lines starting with # are skipped. Calls are sent in order
over one connection and honour --rate-limit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return a.batch(cmd, in)
		},
	}

	return []*cobra.Command{
		simple("run", "Start or continue the simulation", (*client.Client).Run),
		simple("resume", "Continue a held simulation", (*client.Client).Resume),
		simple("hold", "Pause the simulation", (*client.Client).Hold),
		simple("exit", "Terminate the simulation", (*client.Client).Exit),
		helloCmd,
		modelCmd,
		batchCmd,
	}
}

// call connects, runs fn once and prints its result.
func (a *app) call(cmd *cobra.Command, fn callFunc) error {
	defer a.writeMetrics(cmd)

	cli, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cli.Close()

	result, err := fn(cmd.Context(), cli)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func (a *app) batch(cmd *cobra.Command, in io.Reader) error {
	defer a.writeMetrics(cmd)

	cli, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cli.Close()

	scanner := bufio.NewScanner(in)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		method, rest, _ := strings.Cut(line, " ")
		var params message.Params
		if rest = strings.TrimSpace(rest); rest != "" {
			if err := json.Unmarshal([]byte(rest), &params); err != nil {
				return fmt.Errorf("line %d: params must be a JSON object: %w", lineNo, err)
			}
		}

		result, err := cli.Call(cmd.Context(), method, params)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		printResult(cmd.OutOrStdout(), result)
	}
	return scanner.Err()
}

// printResult writes a result as one line of JSON. No value prints nothing.
func printResult(w io.Writer, result json.RawMessage) {
	if result == nil {
		return
	}
	fmt.Fprintln(w, string(result))
}

// parseParams turns key=value pairs into params. Values that parse as JSON keep their
// type, so value=3 is a number and flag=true a boolean.
func parseParams(pairs []string) (message.Params, error) {
	params := make(message.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expect key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		params[key] = decoded
	}
	return params, nil
}
