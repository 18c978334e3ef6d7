package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

const groqDefaultModel = "mixtral-8x7b-32768"

type groqProvider struct {
	client *http.Client
}

func (p *groqProvider) Name() string { return "groq" }

func (p *groqProvider) BaseURL(st *providerState) string {
	return "https://api.groq.com/openai"
}

func (p *groqProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	return nil
}

func (p *groqProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	auth := header.Get("Authorization")
	if auth == "" {
		return nil, errMissingApiKey()
	}
	out.Set("Authorization", auth)
	return out, nil
}

func (p *groqProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	if _, hasTools := parsed["tools"]; hasTools {
		return nil, errUnsupportedFeature("groq does not support function calling")
	}

	model := strOr(parsed["model"], groqDefaultModel)
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
					if err != nil {
						if text.Len() > 0 {
							text.WriteByte('\n')
						}
						text.WriteString("[Failed to process image: " + url + "]")
						continue
					}
					if text.Len() > 0 {
						text.WriteByte('\n')
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
						if globalLogger != nil {
							globalLogger.Warnw("image input is only supported for claude models on groq", "model", model)
						}
						text.WriteString("[Image: " + url + "]")
					}
				}
			}
			if text.Len() == 0 {
				content = " "
			} else {
				content = text.String()
			}
		case string:
			content = c
		default:
			return nil, errInvalidRequestFormat()
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
	}
	return json.Marshal(out)
}

func (p *groqProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	return path, nil
}

func (p *groqProvider) RequiresSigning() bool { return false }

func (p *groqProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *groqProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, stripEmptyLinesTransform()), nil
}
