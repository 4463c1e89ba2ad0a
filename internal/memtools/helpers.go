// Package memtools provides MCP tool handlers for the project memory store.
//
// Each tool handler follows the same pattern as internal/tools:
// - A struct with dependencies (memory.Store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers never return Go errors. Bad input and store failures come back
// as tool errors so the calling model can correct itself.
package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg extracts a list argument. Clients send lists as newline-separated
// strings or JSON array strings; a native array is accepted too.
func listArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		return splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return splitList(strings.Join(items, "\n"))
		}
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// dateArg parses a YYYY-MM-DD or RFC 3339 argument. A bare date used as an
// upper bound covers the whole day.
func dateArg(req mcp.CallToolRequest, key string, upper bool) (time.Time, error) {
	s := strings.TrimSpace(req.GetString(key, ""))
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' must be YYYY-MM-DD or RFC 3339, got %q", key, s)
	}
	return t, nil
}

// storeError maps a memory store error to a tool error.
func storeError(action string, err error) *mcp.CallToolResult {
	switch {
	case memory.IsValidation(err), memory.IsNotFound(err):
		return mcp.NewToolResultError(err.Error())
	case memory.IsStorage(err):
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v. The write may have landed; re-read before retrying.", action, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

// resolvePlan loads the plan named by plan_id, or the active plan when the
// argument is omitted. Exactly one of the results is non-nil.
func resolvePlan(ctx context.Context, store *memory.Store, req mcp.CallToolRequest) (*plans.Plan, *mcp.CallToolResult) {
	if id := strings.TrimSpace(req.GetString("plan_id", "")); id != "" {
		p, err := store.GetPlan(ctx, id)
		if err != nil {
			return nil, storeError("load plan", err)
		}
		return p, nil
	}
	p, err := store.ActivePlan(ctx)
	if err != nil {
		return nil, storeError("load active plan", err)
	}
	if p == nil {
		return nil, mcp.NewToolResultError("no active plan: pass 'plan_id' or create one with plan_create")
	}
	return p, nil
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
