package api

import (
	"encoding/json"
	"strings"
)

// The backend's response envelopes are not fully stable: the same logical
// payload can arrive at the top level, under a named field, or nested inside
// a "data" wrapper. These helpers walk a fixed precedence order of known
// shapes so call sites stay free of scattered optional chaining.

// ExtractList returns the first JSON array found at raw itself or at one of
// the dotted paths, in order. Falls back to an empty array.
func ExtractList(raw []byte, paths ...string) json.RawMessage {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return json.RawMessage("[]")
	}

	if _, ok := top.([]any); ok {
		return json.RawMessage(raw)
	}

	for _, path := range paths {
		if v, ok := lookup(top, path); ok {
			if _, isList := v.([]any); isList {
				out, err := json.Marshal(v)
				if err == nil {
					return out
				}
			}
		}
	}
	return json.RawMessage("[]")
}

// ExtractString returns the first non-empty string found at one of the dotted
// paths, in order. Falls back to "".
func ExtractString(raw []byte, paths ...string) string {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return ""
	}
	for _, path := range paths {
		if v, ok := lookup(top, path); ok {
			if s, isStr := v.(string); isStr && s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractObject returns the first JSON object found at one of the dotted
// paths, in order. ok is false when no path matches.
func ExtractObject(raw []byte, paths ...string) (json.RawMessage, bool) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, false
	}
	for _, path := range paths {
		if v, ok := lookup(top, path); ok {
			if _, isObj := v.(map[string]any); isObj {
				out, err := json.Marshal(v)
				if err == nil {
					return out, true
				}
			}
		}
	}
	return nil, false
}

// backendMessage pulls a human-readable error message out of an error
// response body, if the backend provided one.
func backendMessage(raw []byte) string {
	return ExtractString(raw, "error", "message", "detail", "data.error", "data.message")
}

func lookup(v any, path string) (any, bool) {
	cur := v
	for part := range strings.SplitSeq(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
