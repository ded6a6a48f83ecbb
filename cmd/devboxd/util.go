package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// streamOutputLine extracts the output field from a stdout/stderr stream
// event payload, falling back to the raw data.
func streamOutputLine(data string) string {
	var payload struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Output == "" {
		return data
	}
	return payload.Output
}

// parseEnvPairs converts KEY=VALUE strings to a map, skipping malformed
// entries.
func parseEnvPairs(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
