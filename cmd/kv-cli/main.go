package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	cmdutil "github.com/heysubinoy/quotakv/cmd"
	"github.com/heysubinoy/quotakv/internal/api"
	"github.com/heysubinoy/quotakv/pkg/client"
	"github.com/heysubinoy/quotakv/pkg/kv"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// entryClient is implemented by both the HTTP and gRPC clients.
type entryClient interface {
	List(ctx context.Context) ([]kv.Entry, error)
	Get(ctx context.Context, key string) (kv.Entry, error)
	Create(ctx context.Context, key, value string) (kv.Entry, error)
	Put(ctx context.Context, key, value string) (kv.Entry, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ entryClient = (*client.Client)(nil)
	_ entryClient = (*api.GRPCClient)(nil)
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	cmdutil.CatchCtrlC(cancel)

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		cmdutil.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	url      string
	grpcAddr string
	retry    bool
	timeout  time.Duration
}

func run(ctx context.Context, args []string, out io.Writer) error {
	return execute(ctx, &cli{}, args, out)
}

func execute(ctx context.Context, c *cli, args []string, out io.Writer) error {
	cmd := newRootCommand(c)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	if err := cmdutil.SetFlagsFromEnvVariables(cmd.PersistentFlags()); err != nil {
		return err
	}
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(c *cli) *cobra.Command {
	defaultURL := os.Getenv("BASE_URL")
	if defaultURL == "" {
		defaultURL = client.DefaultURL
	}

	cmd := &cobra.Command{
		Use:           "kv-cli",
		Short:         "quotakv command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&c.url, "url", defaultURL, "Store endpoint URL (defaults to $BASE_URL)")
	cmd.PersistentFlags().StringVar(&c.grpcAddr, "grpc-addr", "", "Use gRPC at this address instead of HTTP")
	cmd.PersistentFlags().BoolVar(&c.retry, "retry", false, "Retry HTTP requests on transient errors")
	cmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 5*time.Second, "Request timeout")

	cmd.AddCommand(
		c.listCommand(),
		c.getCommand(),
		c.createCommand(),
		c.putCommand(),
		c.deleteCommand(),
		c.clearCommand(),
	)
	return cmd
}

// connect returns a client for the configured transport and a func to
// release it.
func (c *cli) connect() (entryClient, func(), error) {
	if c.grpcAddr != "" {
		// passthrough resolver for direct address connection
		conn, err := grpc.NewClient("passthrough:///"+c.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect: %w", err)
		}
		return api.NewGRPCClient(conn), func() { conn.Close() }, nil
	}
	hc, err := client.New(client.Config{URL: c.url, RetryRequests: c.retry})
	if err != nil {
		return nil, nil, err
	}
	return hc, func() {}, nil
}

// withClient runs fn with a connected client and a request-scoped context.
func (c *cli) withClient(cmd *cobra.Command, fn func(ctx context.Context, ec entryClient) error) error {
	ec, closer, err := c.connect()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	return fn(ctx, ec)
}

func printEntry(w io.Writer, e kv.Entry) error {
	return json.NewEncoder(w).Encode(e)
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				entries, err := ec.List(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Key, e.Value)
				}
				return nil
			})
		},
	}
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show a single entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				entry, err := ec.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printEntry(cmd.OutOrStdout(), entry)
			})
		},
	}
}

func (c *cli) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <key> <value>",
		Short: "Create a new entry, failing if the key exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				entry, err := ec.Create(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printEntry(cmd.OutOrStdout(), entry)
			})
		},
	}
}

func (c *cli) putCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Create or replace an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				entry, err := ec.Put(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printEntry(cmd.OutOrStdout(), entry)
			})
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				if err := ec.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted '%s'\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, ec entryClient) error {
				n, err := client.ClearAll(ctx, ec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", n)
				return nil
			})
		},
	}
}
