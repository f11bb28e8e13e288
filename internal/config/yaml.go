package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// configToJSON turns YAML input into JSON bytes so both formats go through
// the same strict JSON decoder. Non-YAML paths pass through untouched.
func configToJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	out, err := json.Marshal(stringKeyed(doc))
	if err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	return out, nil
}

// stringKeyed rewrites yaml's map[any]any nodes into map[string]any so the
// tree can be handed to encoding/json.
func stringKeyed(v any) any {
	switch node := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(node))
		for k, val := range node {
			m[fmt.Sprint(k)] = stringKeyed(val)
		}
		return m
	case map[string]any:
		for k, val := range node {
			node[k] = stringKeyed(val)
		}
		return node
	case []any:
		for i, val := range node {
			node[i] = stringKeyed(val)
		}
		return node
	default:
		return v
	}
}
