package main

import "strings"

// jsonObj and jsonArr are the informal aliases used throughout the adapters
// for untyped JSON trees; the canonical request is never given a static Go
// struct because every provider needs a different subset and shape of it.
type jsonObj = map[string]interface{}
type jsonArr = []interface{}

func asObj(v interface{}) (jsonObj, bool) {
	o, ok := v.(jsonObj)
	return o, ok
}

func asArr(v interface{}) (jsonArr, bool) {
	a, ok := v.(jsonArr)
	return a, ok
}

func asStr(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func strOr(v interface{}, def string) string {
	if s, ok := asStr(v); ok {
		return s
	}
	return def
}

func floatOr(v interface{}, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func valueOr(v interface{}, def interface{}) interface{} {
	if v == nil {
		return def
	}
	return v
}

// blockType returns the "type" discriminator of a content block, or "".
func blockType(block jsonObj) string {
	t, _ := asStr(block["type"])
	return t
}

// isClaudeModel matches the original source's substring check used to
// decide whether Fireworks/Groq/Together should emit Anthropic-style
// image blocks instead of a URL or placeholder.
func isClaudeModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

// anthropicToolCallBlock builds the {"type":"tool_calls","tool_calls":[...]}
// envelope Anthropic flattens tool_call blocks into before appending the
// result to the leading text block. Bedrock builds the same outer envelope
// with its own entry shape in bedrockToolCallBlock.
func anthropicToolCallBlock(block jsonObj) (jsonObj, bool) {
	raw, ok := block["tool_calls"]
	if !ok {
		return nil, false
	}
	calls, ok := asArr(raw)
	if !ok {
		return nil, false
	}
	out := make(jsonArr, 0, len(calls))
	for _, c := range calls {
		call, ok := asObj(c)
		if !ok {
			continue
		}
		fn, ok := asObj(call["function"])
		if !ok {
			continue
		}
		name, nameOK := asStr(fn["name"])
		args, argsOK := asStr(fn["arguments"])
		if !nameOK || !argsOK {
			continue
		}
		out = append(out, jsonObj{"type": "function", "name": name, "parameters": args})
	}
	return jsonObj{"type": "tool_calls", "tool_calls": out}, true
}

// fireworksToolCallBlock flattens a tool_calls block to a bare
// {"tool_calls":[{"name","arguments"}]}: unlike anthropicToolCallBlock it adds
// no "type" wrapper, per SPEC_FULL's supplemented per-provider tool-call
// shape note.
func fireworksToolCallBlock(block jsonObj) (jsonObj, bool) {
	raw, ok := block["tool_calls"]
	if !ok {
		return nil, false
	}
	calls, ok := asArr(raw)
	if !ok {
		return nil, false
	}
	out := make(jsonArr, 0, len(calls))
	for _, c := range calls {
		call, ok := asObj(c)
		if !ok {
			continue
		}
		fn, ok := asObj(call["function"])
		if !ok {
			continue
		}
		name, nameOK := asStr(fn["name"])
		args, argsOK := asStr(fn["arguments"])
		if !nameOK || !argsOK {
			continue
		}
		out = append(out, jsonObj{"name": name, "arguments": args})
	}
	return jsonObj{"tool_calls": out}, true
}

// togetherToolCallBlock flattens a tool_calls block to {"functions":[...]}.
func togetherToolCallBlock(block jsonObj) (jsonObj, bool) {
	raw, ok := block["tool_calls"]
	if !ok {
		return nil, false
	}
	calls, ok := asArr(raw)
	if !ok {
		return nil, false
	}
	out := make(jsonArr, 0, len(calls))
	for _, c := range calls {
		call, ok := asObj(c)
		if !ok {
			continue
		}
		fn, ok := asObj(call["function"])
		if !ok {
			continue
		}
		name, nameOK := asStr(fn["name"])
		args, argsOK := asStr(fn["arguments"])
		if !nameOK || !argsOK {
			continue
		}
		out = append(out, jsonObj{"name": name, "arguments": args})
	}
	return jsonObj{"functions": out}, true
}

// streamingToolCallDefaults rewrites a decoded delta.tool_calls array with
// the index/id/name/arguments defaults spec.md requires for Anthropic,
// Fireworks, and Together SSE chunks.
func streamingToolCallDefaults(raw interface{}) jsonArr {
	calls, ok := asArr(raw)
	if !ok {
		return jsonArr{}
	}
	out := make(jsonArr, 0, len(calls))
	for _, c := range calls {
		call, ok := asObj(c)
		if !ok {
			continue
		}
		fn, _ := asObj(call["function"])
		name := ""
		args := "{}"
		if fn != nil {
			name = strOr(fn["name"], "")
			args = strOr(fn["arguments"], "{}")
		}
		out = append(out, jsonObj{
			"index": valueOr(call["index"], float64(0)),
			"id":    strOr(call["id"], "call_0"),
			"type":  "function",
			"function": jsonObj{
				"name":      name,
				"arguments": args,
			},
		})
	}
	return out
}
