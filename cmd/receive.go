package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hookcheck/internal/testing"
	"hookcheck/internal/testing/mock"
	"hookcheck/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	receivePort int
	receivePath string
	receiveMCP  bool
)

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Run a standalone webhook receiver",
	Long: `The receive command starts a single mock receiver and keeps it running
until interrupted. Point a webhook subscription at the printed endpoint to
watch what the identity platform sends.

With --mcp the receiver is exposed as an MCP server on stdio instead. Its
tools list the recorded deliveries, show one delivery in full and check an
expected payload against the deliveries without consuming them.

Example usage:
  hookcheck receive --port 8580 --path /webhooks/login
  hookcheck receive --mcp`,
	RunE: runReceive,
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().IntVar(&receivePort, "port", 0, "Port to listen on (default: first port of the configured receiver range)")
	receiveCmd.Flags().StringVar(&receivePath, "path", "/webhook", "Endpoint path deliveries are accepted on")
	receiveCmd.Flags().BoolVar(&receiveMCP, "mcp", false, "Serve the receiver's deliveries over MCP (stdio transport)")
}

func runReceive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadHarnessConfig(cmd)
	if err != nil {
		return err
	}

	env, err := testing.EnvironmentFromConfig(cfg, nil)
	if err != nil {
		return err
	}

	port := receivePort
	if port == 0 {
		port = cfg.Receiver.PortStart
	}

	receiver := mock.NewReceiver(env.Receiver)
	if _, err := receiver.Start(ctx, port); err != nil {
		return err
	}
	defer func() {
		if err := receiver.Stop(context.Background()); err != nil {
			logging.Error("Receive", err, "Failed to stop receiver on port %d", port)
		}
	}()

	endpoint, err := receiver.RegisterEndpoint(receivePath)
	if err != nil {
		return err
	}

	if receiveMCP {
		// stdout belongs to the MCP transport
		logging.Info("Receive", "Receiving webhooks at %s, serving MCP on stdio", endpoint)
		inspector := testing.NewInspectorServer(receiver, testing.NewMatcher())
		if err := inspector.Start(ctx); err != nil {
			return fmt.Errorf("inspector MCP server error: %w", err)
		}
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📡 Receiving webhooks at %s (Ctrl+C to stop)\n", endpoint)

	err = printDeliveries(ctx, out, receiver, debug)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printDeliveries writes every new delivery to out until ctx is done.
func printDeliveries(ctx context.Context, out io.Writer, receiver *mock.Receiver, withHeaders bool) error {
	seen := 0
	for {
		if err := receiver.WaitForDeliveries(ctx, seen+1); err != nil {
			return ctx.Err()
		}

		deliveries := receiver.OrderedDeliveries()
		for _, d := range deliveries[seen:] {
			writeDelivery(out, d, withHeaders)
		}
		seen = len(deliveries)
	}
}

func writeDelivery(out io.Writer, d mock.Delivery, withHeaders bool) {
	fmt.Fprintf(out, "\n📨 #%d %s %s (%s)\n", d.Sequence, d.Method, d.Path, d.ReceivedAt.Format("15:04:05.000"))
	if withHeaders {
		for name, values := range d.Headers {
			for _, v := range values {
				fmt.Fprintf(out, "   %s: %s\n", name, v)
			}
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, d.Body, "   ", "  "); err != nil {
		fmt.Fprintf(out, "   %s\n", d.BodyString())
		return
	}
	fmt.Fprintf(out, "   %s\n", pretty.String())
}
