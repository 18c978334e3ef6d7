package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

const togetherDefaultModel = "mistralai/Mixtral-8x7B-Instruct-v0.1"

type togetherProvider struct {
	client *http.Client
}

func (p *togetherProvider) Name() string { return "together" }

func (p *togetherProvider) BaseURL(st *providerState) string {
	return "https://api.together.xyz"
}

func (p *togetherProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	return nil
}

func (p *togetherProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	auth := header.Get("Authorization")
	if auth == "" {
		return nil, errMissingApiKey()
	}
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
		return nil, errInvalidHeader()
	}
	out.Set("Authorization", auth)
	return out, nil
}

func (p *togetherProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	model := strOr(parsed["model"], togetherDefaultModel)
	messages, ok := asArr(parsed["messages"])
	if !ok {
		return nil, errInvalidRequestFormat()
	}

	transformed := make(jsonArr, 0, len(messages))
	for _, m := range messages {
		msg, ok := asObj(m)
		if !ok {
			continue
		}
		role := strOr(msg["role"], "user")

		var content string
		switch c := msg["content"].(type) {
		case jsonArr:
			var text strings.Builder
			for _, b := range c {
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
					data, err := fetchAndEncodeImage(p.client, url, policyStandardImage)
					if text.Len() > 0 {
						text.WriteByte('\n')
					}
					if err != nil {
						text.WriteString("[Failed to process image: " + url + "]")
						continue
					}
					if isClaudeModel(model) {
						block := jsonObj{
							"type": "image",
							"source": jsonObj{
								"type":       "base64",
								"media_type": mediaType,
								"data":       data,
							},
						}
						if b, err := json.Marshal(block); err == nil {
							text.WriteString(string(b))
						}
					} else {
						text.WriteString("[Image: " + url + "]")
					}
				case "tool_call":
					if tc, ok := togetherToolCallBlock(block); ok {
						if b, err := json.Marshal(tc); err == nil {
							text.WriteString(string(b))
						}
					}
				}
			}
			content = text.String()
		case string:
			content = c
		}

		transformed = append(transformed, jsonObj{"role": role, "content": content})
	}

	out := jsonObj{
		"model":       model,
		"messages":    transformed,
		"stream":      valueOr(parsed["stream"], false),
		"max_tokens":  parsed["max_tokens"],
		"temperature": valueOr(parsed["temperature"], 0.7),
		"top_p":       valueOr(parsed["top_p"], 1.0),
		"tools":       parsed["tools"],
		"tool_choice": parsed["tool_choice"],
	}
	return json.Marshal(out)
}

func (p *togetherProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	return path, nil
}

func (p *togetherProvider) RequiresSigning() bool { return false }

func (p *togetherProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *togetherProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, deltaToolCallTransform()), nil
}
