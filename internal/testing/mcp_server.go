package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"hookcheck/internal/testing/mock"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// InspectorServer exposes a running receiver over MCP so an assistant can
// look at deliveries and try expectations against them without consuming
// anything.
type InspectorServer struct {
	receiver  *mock.Receiver
	matcher   *Matcher
	mcpServer *server.MCPServer
}

// deliverySummary is the JSON shape of a delivery in tool results.
type deliverySummary struct {
	Sequence   uint64          `json:"sequence"`
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	ReceivedAt time.Time       `json:"received_at"`
	EventURIs  []string        `json:"event_uris,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	RawBody    string          `json:"raw_body,omitempty"`
}

// checkResult is the JSON shape of a check_payload answer.
type checkResult struct {
	Matched    bool     `json:"matched"`
	Outcome    string   `json:"outcome"`
	Sequence   uint64   `json:"sequence,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
	Message    string   `json:"message,omitempty"`
	Received   int      `json:"received"`
}

// NewInspectorServer creates an MCP server bound to receiver.
func NewInspectorServer(receiver *mock.Receiver, matcher *Matcher) *InspectorServer {
	if matcher == nil {
		matcher = NewMatcher()
	}

	s := &InspectorServer{
		receiver: receiver,
		matcher:  matcher,
		mcpServer: server.NewMCPServer(
			"hookcheck-inspector",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdio until the client disconnects or ctx is done.
func (s *InspectorServer) Start(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks the MCP stdio protocol on in and out. Cancelling ctx ends the
// session without an error.
func (s *InspectorServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	err := stdioServer.Listen(ctx, in, out)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *InspectorServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *InspectorServer) registerTools() {
	listDeliveries := mcp.NewTool("list_deliveries",
		mcp.WithDescription("List webhook deliveries recorded by the receiver in arrival order"),
		mcp.WithString("event_uri",
			mcp.Description("Only include deliveries carrying this event URI"),
		),
	)
	s.mcpServer.AddTool(listDeliveries, s.handleListDeliveries)

	getDelivery := mcp.NewTool("get_delivery",
		mcp.WithDescription("Show one delivery including headers and body"),
		mcp.WithNumber("sequence",
			mcp.Required(),
			mcp.Description("Arrival sequence number of the delivery"),
		),
	)
	s.mcpServer.AddTool(getDelivery, s.handleGetDelivery)

	checkPayload := mcp.NewTool("check_payload",
		mcp.WithDescription("Check an expected event payload against the recorded deliveries without consuming them"),
		mcp.WithString("event_uri",
			mcp.Required(),
			mcp.Description("Event URI the payload is expected under"),
		),
		mcp.WithString("expected_json",
			mcp.Required(),
			mcp.Description("JSON object with the fields the event must carry"),
		),
	)
	s.mcpServer.AddTool(checkPayload, s.handleCheckPayload)
}

func (s *InspectorServer) handleListDeliveries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, _ := request.GetArguments()["event_uri"].(string)

	summaries := make([]deliverySummary, 0)
	for _, d := range s.receiver.OrderedDeliveries() {
		summary := summarize(d, false)
		if filter != "" && !containsString(summary.EventURIs, filter) {
			continue
		}
		summaries = append(summaries, summary)
	}

	return jsonResult(summaries)
}

func (s *InspectorServer) handleGetDelivery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seq, ok := request.GetArguments()["sequence"].(float64)
	if !ok || seq < 1 {
		return mcp.NewToolResultError("sequence argument is required"), nil
	}

	for _, d := range s.receiver.OrderedDeliveries() {
		if d.Sequence == uint64(seq) {
			full := struct {
				deliverySummary
				Headers map[string][]string `json:"headers,omitempty"`
			}{summarize(d, true), d.Headers}
			return jsonResult(full)
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("Delivery not found: #%d", uint64(seq))), nil
}

func (s *InspectorServer) handleCheckPayload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eventURI, err := request.RequireString("event_uri")
	if err != nil {
		return mcp.NewToolResultError("event_uri argument is required"), nil
	}
	raw, err := request.RequireString("expected_json")
	if err != nil {
		return mcp.NewToolResultError("expected_json argument is required"), nil
	}

	var expected map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &expected); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("expected_json is not a JSON object: %v", err)), nil
	}
	payload, err := NormalizePayload(expected)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pool := newCandidatePool(s.receiver.OrderedDeliveries())
	res := s.matcher.Peek(pool, Expectation{EventURI: eventURI, Payload: payload})

	out := checkResult{
		Matched:  res.Outcome == Matched,
		Outcome:  res.Outcome.String(),
		Received: res.Received,
	}
	if res.Delivery != nil {
		out.Sequence = res.Delivery.Sequence
	}
	for _, m := range res.Mismatches {
		out.Mismatches = append(out.Mismatches, m.String())
	}
	if err := res.Err(); err != nil {
		out.Message = err.Error()
	}

	return jsonResult(out)
}

// summarize decodes the body when it is a JSON object and lists its event
// URIs. Malformed bodies are returned as raw text.
func summarize(d mock.Delivery, withBody bool) deliverySummary {
	summary := deliverySummary{
		Sequence:   d.Sequence,
		ID:         d.ID,
		Path:       d.Path,
		ReceivedAt: d.ReceivedAt,
	}

	payload, err := decodePayload(d.Body)
	if err != nil {
		summary.RawBody = d.BodyString()
		return summary
	}
	if events, ok := payload["events"].(map[string]interface{}); ok {
		for uri := range events {
			summary.EventURIs = append(summary.EventURIs, uri)
		}
		sort.Strings(summary.EventURIs)
	}
	if withBody {
		summary.Body = json.RawMessage(d.Body)
	}
	return summary
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
