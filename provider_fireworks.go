package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

const fireworksDefaultModel = "accounts/fireworks/models/mixtral-8x7b"

type fireworksProvider struct {
	client *http.Client
}

func (p *fireworksProvider) Name() string { return "fireworks" }

func (p *fireworksProvider) BaseURL(st *providerState) string {
	return "https://api.fireworks.ai/inference/v1"
}

func (p *fireworksProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	return nil
}

func (p *fireworksProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")
	out.Set("Accept", "application/json")

	auth := header.Get("Authorization")
	if auth == "" {
		return nil, errMissingApiKey()
	}
	if strings.TrimSpace(auth) == "" || !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
		return nil, errInvalidHeader()
	}
	out.Set("Authorization", auth)
	return out, nil
}

func (p *fireworksProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	model := strOr(parsed["model"], fireworksDefaultModel)
	out := jsonObj{
		"model":       model,
		"max_tokens":  valueOr(parsed["max_tokens"], float64(2048)),
		"temperature": valueOr(parsed["temperature"], 0.7),
		"top_p":       valueOr(parsed["top_p"], 1.0),
		"stream":      valueOr(parsed["stream"], false),
	}

	messages, _ := asArr(parsed["messages"])
	transformedMessages := make(jsonArr, 0, len(messages))
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

		var content jsonArr
		switch c := msg["content"].(type) {
		case jsonArr:
			var textParts []string
			var imageParts jsonArr
			for _, b := range c {
				block, ok := asObj(b)
				if !ok {
					continue
				}
				switch blockType(block) {
				case "text":
					if t, ok := asStr(block["text"]); ok {
						textParts = append(textParts, t)
					}
				case "image_url":
					imageURLObj, _ := asObj(block["image_url"])
					url, ok := asStr(imageURLObj["url"])
					if !ok {
						continue
					}
					mediaType := strOr(imageURLObj["detail"], "auto")
					data, err := fetchAndEncodeImage(p.client, url, policyStandardImage)
					if err != nil {
						textParts = append(textParts, "[Failed to process image: "+url+"]")
						continue
					}
					if isClaudeModel(model) {
						imageParts = append(imageParts, jsonObj{
							"type": "image",
							"source": jsonObj{
								"type":       "base64",
								"media_type": mediaType,
								"data":       data,
							},
						})
					} else {
						imageParts = append(imageParts, jsonObj{
							"type": "image",
							"image_url": jsonObj{
								"url":    url,
								"detail": mediaType,
							},
						})
					}
				case "tool_call":
					if tc, ok := fireworksToolCallBlock(block); ok {
						if b, err := json.Marshal(tc); err == nil {
							textParts = append(textParts, string(b))
						}
					}
				}
			}
			if len(textParts) > 0 {
				content = append(content, jsonObj{"type": "text", "text": strings.Join(textParts, "\n")})
			}
			content = append(content, imageParts...)
		case string:
			content = jsonArr{jsonObj{"type": "text", "text": c}}
		default:
			continue
		}

		transformedMessages = append(transformedMessages, jsonObj{"role": role, "content": content})
	}
	out["messages"] = transformedMessages

	if tools, ok := asArr(parsed["tools"]); ok {
		transformedTools := make(jsonArr, 0, len(tools))
		for _, t := range tools {
			tool, ok := asObj(t)
			if !ok || strOr(tool["type"], "") != "function" {
				continue
			}
			fn, _ := asObj(tool["function"])
			name, ok := asStr(fn["name"])
			if !ok {
				continue
			}
			transformedTools = append(transformedTools, jsonObj{
				"type": "function",
				"function": jsonObj{
					"name":        name,
					"description": strOr(fn["description"], ""),
					"parameters":  fn["parameters"],
				},
			})
		}
		out["tools"] = transformedTools
	}

	return json.Marshal(out)
}

func (p *fireworksProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	if strings.HasPrefix(path, "/v1/") {
		return strings.TrimPrefix(path, "/v1"), nil
	}
	return path, nil
}

func (p *fireworksProvider) RequiresSigning() bool { return false }

func (p *fireworksProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *fireworksProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, deltaToolCallTransform()), nil
}
