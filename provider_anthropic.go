package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

const anthropicDefaultModel = "claude-3-opus-20240229"
const anthropicAPIVersion = "2024-03-01"

type anthropicProvider struct {
	client *http.Client
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) BaseURL(st *providerState) string {
	return "https://api.anthropic.com"
}

func (p *anthropicProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	return nil
}

func (p *anthropicProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")
	out.Set("anthropic-version", anthropicAPIVersion)

	auth := header.Get("Authorization")
	if auth == "" {
		return nil, errMissingApiKey()
	}
	apiKey := strings.TrimPrefix(auth, "Bearer ")
	out.Set("x-api-key", apiKey)
	return out, nil
}

func (p *anthropicProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}
	out, err := transformAnthropicStyleBody(p.client, parsed, anthropicDefaultModel, 4096, policyStandardImage)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// transformAnthropicStyleBody implements Anthropic's message/content-block
// expansion rules: messages become an ordered block sequence, text blocks
// concatenate, image_url blocks become base64 Anthropic image blocks, and
// tool_call blocks flatten into the leading text block. Bedrock's
// PrepareRequestBody applies the same expansion in its own copy and does not
// call this function.
func transformAnthropicStyleBody(client httpDoer, body jsonObj, defaultModel string, defaultMaxTokens float64, policy imagePolicy) (jsonObj, error) {
	out := jsonObj{
		"model":       strOr(body["model"], defaultModel),
		"max_tokens":  valueOr(body["max_tokens"], defaultMaxTokens),
		"temperature": valueOr(body["temperature"], 0.7),
		"top_p":       valueOr(body["top_p"], 1.0),
		"stream":      valueOr(body["stream"], false),
	}

	messages, _ := asArr(body["messages"])
	transformed := make(jsonArr, 0, len(messages))
	for _, m := range messages {
		msg, ok := asObj(m)
		if !ok {
			continue
		}
		role, _ := asStr(msg["role"])
		switch role {
		case "user", "assistant", "system":
		default:
			continue
		}

		var blocks jsonArr
		switch content := msg["content"].(type) {
		case jsonArr:
			var text strings.Builder
			var images jsonArr
			for _, b := range content {
				block, ok := asObj(b)
				if !ok {
					continue
				}
				switch blockType(block) {
				case "text":
					if t, ok := asStr(block["text"]); ok {
						if text.Len() > 0 {
							text.WriteByte('\n')
						}
						text.WriteString(t)
					}
				case "image_url":
					imageURLObj, _ := asObj(block["image_url"])
					url, ok := asStr(imageURLObj["url"])
					if !ok {
						continue
					}
					mediaType := strOr(imageURLObj["detail"], "auto")
					data, err := fetchAndEncodeImage(client, url, policy)
					if err != nil {
						return nil, err
					}
					images = append(images, jsonObj{
						"type": "image",
						"source": jsonObj{
							"type":       "base64",
							"media_type": mediaType,
							"data":       data,
						},
					})
				case "tool_call":
					if tc, ok := anthropicToolCallBlock(block); ok {
						b, err := json.Marshal(tc)
						if err == nil {
							text.WriteString(string(b))
						}
					}
				}
			}
			if text.Len() > 0 {
				blocks = append(blocks, jsonObj{"type": "text", "text": text.String()})
			}
			blocks = append(blocks, images...)
			if len(blocks) == 0 {
				blocks = jsonArr{jsonObj{"type": "text", "text": " "}}
			}
		case string:
			blocks = jsonArr{jsonObj{"type": "text", "text": content}}
		default:
			continue
		}

		transformed = append(transformed, jsonObj{"role": role, "content": blocks})
	}
	out["messages"] = transformed

	if tools, ok := body["tools"]; ok {
		out["tools"] = tools
	}

	return out, nil
}

func (p *anthropicProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	if strings.Contains(path, "/chat/completions") {
		return "/v1/messages", nil
	}
	return path, nil
}

func (p *anthropicProvider) RequiresSigning() bool { return false }

func (p *anthropicProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *anthropicProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, anthropicDeltaTransform()), nil
}

// anthropicDeltaTransform rewrites delta.tool_calls entries with the shared
// index/id/name/arguments defaults; everything else in the event passes
// through unchanged.
func anthropicDeltaTransform() lineTransform {
	return func(payload string) (string, bool) {
		var event jsonObj
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return payload, true
		}
		if delta, ok := asObj(event["delta"]); ok {
			if _, has := delta["tool_calls"]; has {
				delta["tool_calls"] = streamingToolCallDefaults(delta["tool_calls"])
			}
		}
		b, err := json.Marshal(event)
		if err != nil {
			return payload, true
		}
		return string(b), true
	}
}
