package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/eval"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// Built-in node type identifiers.
const (
	TypeTrigger     = "trigger"
	TypeDecision    = "decision"
	TypeTemplate    = "text_template"
	TypeFunction    = "function"
	TypeHTTPRequest = "http_request"
	TypeDelay       = "delay"
)

// Node data keys consumed by the built-in executors.
const (
	DataCondition       = "condition"
	DataTemplate        = "template"
	DataCode            = "code"
	DataMethod          = "method"
	DataURL             = "url"
	DataHeaders         = "headers"
	DataBody            = "body"
	DataTimeoutSeconds  = "timeout_seconds"
	DataDurationMS      = "duration_ms"
	DataContinueOnError = "continue_on_error"
)

// RegisterBuiltins registers the canonical executor for every built-in node
// type. Exactly one implementation is registered per type.
func RegisterBuiltins(registry *Registry, evaluator *eval.Evaluator, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	builtins := []struct {
		nodeType string
		exec     Executor
		meta     Metadata
	}{
		{
			nodeType: TypeTrigger,
			exec:     &TriggerExecutor{},
			meta: Metadata{
				Label:       "Trigger",
				Description: "Entry point of a workflow; passes the run input through unchanged.",
			},
		},
		{
			nodeType: TypeDecision,
			exec:     &DecisionExecutor{Evaluator: evaluator},
			meta: Metadata{
				Label:       "Decision",
				Description: "Routes to the true or false port based on a boolean condition over the upstream value.",
				DefaultData: map[string]any{DataCondition: "value != nil"},
				Validate:    requireStringData(DataCondition),
			},
		},
		{
			nodeType: TypeTemplate,
			exec:     &TemplateExecutor{},
			meta: Metadata{
				Label:       "Text Template",
				Description: "Substitutes {{name}} placeholders from the upstream value; unresolved placeholders pass through verbatim.",
				DefaultData: map[string]any{DataTemplate: ""},
				Validate:    requireStringData(DataTemplate),
			},
		},
		{
			nodeType: TypeFunction,
			exec:     &FunctionExecutor{Evaluator: evaluator},
			meta: Metadata{
				Label:       "Function",
				Description: "Transforms the upstream value with a user-authored expression; failures route to the error port.",
				DefaultData: map[string]any{DataCode: "input"},
				Validate:    requireStringData(DataCode),
			},
		},
		{
			nodeType: TypeHTTPRequest,
			exec: &HTTPRequestExecutor{
				Client: &http.Client{Timeout: 30 * time.Second},
				Logger: logger,
			},
			meta: Metadata{
				Label:       "HTTP Request",
				Description: "Performs an HTTP request; failures route to the error port.",
				DefaultData: map[string]any{DataMethod: http.MethodGet, DataURL: ""},
				Validate:    requireStringData(DataURL),
			},
		},
		{
			nodeType: TypeDelay,
			exec:     &DelayExecutor{},
			meta: Metadata{
				Label:       "Delay",
				Description: "Pauses the run for a configured duration, then passes the value through.",
				DefaultData: map[string]any{DataDurationMS: 1000},
			},
		},
	}

	for _, b := range builtins {
		if err := registry.Register(b.nodeType, b.exec, b.meta); err != nil {
			return err
		}
	}
	return nil
}

func requireStringData(key string) func(map[string]any) error {
	return func(data map[string]any) error {
		v, ok := data[key]
		if !ok {
			return types.NewErrorf(types.ErrToolValidation, "missing required node data %q", key)
		}
		s, isString := v.(string)
		if !isString || strings.TrimSpace(s) == "" {
			return types.NewErrorf(types.ErrToolValidation, "node data %q must be a non-empty string", key)
		}
		return nil
	}
}

// upstreamValue extracts the single upstream input from the port map.
func upstreamValue(inputs map[string]any) any {
	if v, ok := inputs[graph.PortInput]; ok {
		return v
	}
	for _, v := range inputs {
		return v
	}
	return nil
}

// TriggerExecutor passes the workflow input through on the default port.
type TriggerExecutor struct{}

// Execute implements Executor.
func (e *TriggerExecutor) Execute(_ context.Context, _ map[string]any, inputs map[string]any) (Result, error) {
	return Result{graph.PortDefault: upstreamValue(inputs)}, nil
}

// DecisionExecutor evaluates a boolean condition over the upstream value and
// populates exactly one of the true, false, or error ports. Decision nodes
// never abort a run; evaluation failures route to the error port.
type DecisionExecutor struct {
	Evaluator *eval.Evaluator
}

// Execute implements Executor.
func (e *DecisionExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	condition, _ := data[DataCondition].(string)
	if strings.TrimSpace(condition) == "" {
		return Result{graph.PortError: "decision node has no condition"}, nil
	}

	value := upstreamValue(inputs)
	env := map[string]any{
		"value": value,
		"input": value,
	}

	outcome, err := e.Evaluator.EvalBool(ctx, condition, env)
	if err != nil {
		return Result{graph.PortError: err.Error()}, nil
	}
	if outcome {
		return Result{graph.PortTrue: value}, nil
	}
	return Result{graph.PortFalse: value}, nil
}

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// TemplateExecutor renders a text template by substituting {{name}}
// placeholders from the upstream value. Rendering is total: unresolved
// placeholders are left verbatim and never raise.
type TemplateExecutor struct{}

// Execute implements Executor.
func (e *TemplateExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	template, _ := data[DataTemplate].(string)

	value := upstreamValue(inputs)
	variables, _ := value.(map[string]any)
	if variables == nil {
		variables = map[string]any{"value": value}
	}

	rendered := RenderTemplate(template, variables)
	return Result{graph.PortDefault: rendered}, nil
}

// RenderTemplate substitutes {{name}} placeholders from the variable map.
// Variable names are the placeholder text trimmed of surrounding whitespace;
// placeholders without a matching variable are left verbatim.
func RenderTemplate(template string, variables map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := variables[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}

// FunctionExecutor evaluates a user-authored expression over the upstream
// value bound as "input". Evaluation failures populate the error port
// instead of crashing the engine.
type FunctionExecutor struct {
	Evaluator *eval.Evaluator
}

// Execute implements Executor.
func (e *FunctionExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	code, _ := data[DataCode].(string)
	if strings.TrimSpace(code) == "" {
		return Result{graph.PortError: "function node has no code"}, nil
	}

	value := upstreamValue(inputs)
	env := map[string]any{"input": value}

	out, err := e.Evaluator.Eval(ctx, code, env)
	if err != nil {
		return Result{graph.PortError: err.Error()}, nil
	}
	return Result{graph.PortDefault: out}, nil
}

// HTTPRequestExecutor performs an HTTP request configured by node data.
// Transport failures and non-2xx responses populate the error port so that
// graphs can route around them.
type HTTPRequestExecutor struct {
	Client *http.Client
	Logger *zap.Logger
}

// Execute implements Executor.
func (e *HTTPRequestExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	url, _ := data[DataURL].(string)
	if strings.TrimSpace(url) == "" {
		return Result{graph.PortError: "http_request node has no url"}, nil
	}

	method, _ := data[DataMethod].(string)
	if method == "" {
		method = http.MethodGet
	}

	if seconds, ok := asInt(data[DataTimeoutSeconds]); ok && seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
	}

	var body io.Reader
	if raw, ok := data[DataBody].(string); ok && raw != "" {
		body = strings.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return Result{graph.PortError: fmt.Sprintf("invalid request: %v", err)}, nil
	}
	if headers, ok := data[DataHeaders].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return Result{graph.PortError: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{graph.PortError: fmt.Sprintf("reading response failed: %v", err)}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{graph.PortError: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}, nil
	}

	return Result{graph.PortDefault: map[string]any{
		"status": resp.StatusCode,
		"body":   string(respBody),
	}}, nil
}

// DelayExecutor pauses the run for a configured duration. The sleep is
// context-aware so run cancellation is honored.
type DelayExecutor struct{}

// Execute implements Executor.
func (e *DelayExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	value := upstreamValue(inputs)

	ms, ok := asInt(data[DataDurationMS])
	if !ok || ms <= 0 {
		return Result{graph.PortDefault: value}, nil
	}

	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return Result{graph.PortDefault: value}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
