package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/warden-agent/internal/tools"
)

// RegisterTools registers the notebook tools on the registry.
func RegisterTools(r *tools.Registry, store *Store) {
	r.Register(&tools.Tool{
		Name:        "emit_key_facts",
		Description: "Record one or more key facts worth remembering for the rest of the session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"facts": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "The facts to record",
				},
			},
			"required": []string{"facts"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			contents, err := stringSlice(args["facts"])
			if err != nil {
				return "", fmt.Errorf("facts: %w", err)
			}
			if len(contents) == 0 {
				return "", fmt.Errorf("facts is required")
			}

			ids, err := store.AddFacts(contents)
			if err != nil {
				return "", err
			}

			var b strings.Builder
			for i, id := range ids {
				fmt.Fprintf(&b, "Stored fact #%d: %s\n", id, contents[i])
			}
			return b.String(), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "delete_key_facts",
		Description: "Delete previously recorded key facts by ID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fact_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "IDs of the facts to delete",
				},
			},
			"required": []string{"fact_ids"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ids, err := int64Slice(args["fact_ids"])
			if err != nil {
				return "", fmt.Errorf("fact_ids: %w", err)
			}

			deleted, missing, err := store.DeleteFacts(ids)
			if err != nil {
				return "", err
			}
			return deleteReport("fact", deleted, missing), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "emit_key_snippet",
		Description: "Record a key source code snippet with its file location for later reference.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filepath": map[string]any{
					"type":        "string",
					"description": "Path of the file the snippet comes from",
				},
				"line_number": map[string]any{
					"type":        "integer",
					"description": "Line number where the snippet starts",
				},
				"snippet": map[string]any{
					"type":        "string",
					"description": "The source excerpt",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Optional note about why this matters",
				},
			},
			"required": []string{"filepath", "line_number", "snippet"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			filepath, _ := args["filepath"].(string)
			source, _ := args["snippet"].(string)
			if filepath == "" || source == "" {
				return "", fmt.Errorf("filepath and snippet are required")
			}

			line := 0
			if l, ok := args["line_number"].(float64); ok {
				line = int(l)
			}
			description, _ := args["description"].(string)

			id, err := store.AddSnippet(Snippet{
				Filepath:    filepath,
				LineNumber:  line,
				Source:      source,
				Description: description,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Stored snippet #%d (%s:%d)", id, filepath, line), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "delete_key_snippets",
		Description: "Delete previously recorded key snippets by ID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"snippet_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "IDs of the snippets to delete",
				},
			},
			"required": []string{"snippet_ids"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ids, err := int64Slice(args["snippet_ids"])
			if err != nil {
				return "", fmt.Errorf("snippet_ids: %w", err)
			}

			deleted, missing, err := store.DeleteSnippets(ids)
			if err != nil {
				return "", err
			}
			return deleteReport("snippet", deleted, missing), nil
		},
	})
}

func deleteReport(kind string, deleted, missing []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deleted %d %s(s).", len(deleted), kind)
	if len(missing) > 0 {
		fmt.Fprintf(&b, " Not found: %v.", missing)
	}
	return b.String()
}

// stringSlice coerces a decoded JSON array into []string.
func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string elements, got %T", item)
		}
		result = append(result, s)
	}
	return result, nil
}

// int64Slice coerces a decoded JSON array into []int64. JSON numbers
// decode as float64.
func int64Slice(v any) ([]int64, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	result := make([]int64, 0, len(items))
	for _, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("expected integer elements, got %T", item)
		}
		result = append(result, int64(n))
	}
	return result, nil
}
