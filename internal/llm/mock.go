package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/abhisek/classeval/internal/marker"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// TextResponse returns a canned plain-text response.
func TextResponse(text string) MockResponse {
	return MockResponse{Content: json.RawMessage(text)}
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
// When Respond is set it answers every call instead of the queue, which
// suits concurrent callers whose call order is not fixed.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	Respond func(ctx context.Context, req Request) MockResponse
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewMockProviderFunc creates a MockProvider that answers with fn.
func NewMockProviderFunc(fn func(ctx context.Context, req Request) MockResponse) *MockProvider {
	return &MockProvider{Respond: fn}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty. Like the real providers it rejects content that does
// not match req.Schema.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	respond := m.Respond

	var resp MockResponse
	if respond == nil {
		if len(m.responses) == 0 {
			m.mu.Unlock()
			return nil, &ErrProviderUnavailable{Err: nil}
		}
		resp = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	// Respond runs unlocked so concurrent calls can overlap.
	if respond != nil {
		resp = respond(ctx, req)
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	if err := validateResponse(req.Schema, resp.Content); err != nil {
		return nil, err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// studentHeading is the per-student heading of an evaluation prompt,
// "### 张三 (ID 1001)".
var studentHeading = regexp.MustCompile(`(?m)^### (.+?) \(ID [^)]*\)\s*$`)

// DryRun answers evaluation prompts without a model, so the whole pipeline
// can be exercised offline. Every student heading in the prompt gets a
// marker-wrapped placeholder; a prompt that asks for the separator also
// gets a placeholder class analysis after it, and a prompt without
// students gets only the analysis. Schema requests get the smallest
// document the schema accepts.
func DryRun(_ context.Context, req Request) MockResponse {
	if req.Schema != nil {
		doc, err := json.Marshal(placeholder(req.Schema.Definition))
		if err != nil {
			return MockResponse{Err: err}
		}
		return MockResponse{Content: doc}
	}

	var prompt string
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			prompt = m.Content
		}
	}

	const overall = "(dry run) Placeholder class-wide analysis. No model was called."
	matches := studentHeading.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return TextResponse(overall)
	}

	var sb strings.Builder
	for _, m := range matches {
		name := m[1]
		fmt.Fprintf(&sb, "%s\n(dry run) Placeholder evaluation for %s. No model was called.\n%s\n\n",
			marker.Start(name), name, marker.End(name))
	}
	if strings.Contains(prompt, marker.Separator) {
		sb.WriteString(marker.Separator + "\n" + overall + "\n")
	}
	return TextResponse(sb.String())
}

// placeholder builds a minimal instance of a JSON Schema definition:
// required properties only, empty arrays, zero numbers.
func placeholder(def map[string]any) any {
	if enum, ok := def["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	switch def["type"] {
	case "object":
		obj := map[string]any{}
		props, _ := def["properties"].(map[string]any)
		required, _ := def["required"].([]any)
		for _, r := range required {
			name, _ := r.(string)
			sub, _ := props[name].(map[string]any)
			obj[name] = placeholder(sub)
		}
		return obj
	case "array":
		return []any{}
	case "integer", "number":
		if lo, ok := def["minimum"]; ok {
			return lo
		}
		return 0
	case "boolean":
		return false
	default:
		return "(dry run)"
	}
}
