// Package mcputils binds raw MCP tool-call arguments to typed request
// structs. MCP clients are inconsistent about argument encoding: some
// send arrays and booleans as JSON values, others JSON-encode them into
// strings ("[\"go\"]", "true"). The binder accepts both so tool handlers
// see one typed request either way.
package mcputils

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is anything that can hand over raw tool-call arguments.
// mcp.CallToolRequest satisfies it.
type ArgumentGetter interface {
	GetArguments() map[string]any
}

// BindArguments decodes tool-call arguments into target, matching keys
// against json tags. Coercion rules: JSON-encoded string arrays and
// comma-separated lists become slices, "true" becomes a bool, "10"
// becomes an int. Optional pointer fields stay nil when the key is
// absent. Unknown keys are ignored.
func BindArguments[T any](request ArgumentGetter, target *T) error {
	// Strings that carry a JSON array are unpacked before mapstructure
	// sees them, so `"[\"go\"]"` lands in a []string like `["go"]` does.
	jsonStringHook := func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
			return data, nil
		}
		slicePtr := reflect.New(t)
		if err := json.Unmarshal([]byte(raw), slicePtr.Interface()); err != nil {
			// Not valid JSON after all; let the other hooks have it.
			return data, nil
		}
		return slicePtr.Elem().Interface(), nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		// Weak typing turns "true" into bools and "10" into ints.
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonStringHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return err
	}

	return decoder.Decode(request.GetArguments())
}
