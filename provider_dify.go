package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

type difyProvider struct {
	client *http.Client
}

func (p *difyProvider) Name() string { return "dify" }

func (p *difyProvider) BaseURL(st *providerState) string {
	return st.BaseURLOverride
}

func (p *difyProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	base := header.Get("x-dify-base-url")
	if base == "" {
		return errInvalidHeader()
	}
	st.BaseURLOverride = strings.TrimSuffix(base, "/")
	return nil
}

func (p *difyProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	if apiKey := header.Get("x-magicapi-api-key"); apiKey != "" {
		out.Set("Authorization", "Bearer "+apiKey)
	} else if auth := header.Get("Authorization"); auth != "" {
		out.Set("Authorization", auth)
	} else {
		return nil, errMissingApiKey()
	}
	return out, nil
}

func (p *difyProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	isWorkflow := st.isWorkflow

	if err := p.validateBody(parsed, isWorkflow); err != nil {
		return nil, err
	}

	responseMode := "blocking"
	if stream, ok := parsed["stream"].(bool); ok && stream {
		responseMode = "streaming"
	}
	out := jsonObj{"response_mode": responseMode}

	if messages, ok := asArr(parsed["messages"]); ok {
		var query strings.Builder
		var files jsonArr
		for _, m := range messages {
			msg, ok := asObj(m)
			if !ok {
				continue
			}
			if strOr(msg["role"], "") != "user" {
				continue
			}
			switch content := msg["content"].(type) {
			case string:
				query.WriteString(content)
			case jsonArr:
				for _, b := range content {
					block, ok := asObj(b)
					if !ok {
						continue
					}
					switch blockType(block) {
					case "text":
						if t, ok := asStr(block["text"]); ok {
							if query.Len() > 0 {
								query.WriteByte('\n')
							}
							query.WriteString(t)
						}
					case "image_url":
						if isWorkflow {
							continue
						}
						imageURLObj, _ := asObj(block["image_url"])
						if url, ok := asStr(imageURLObj["url"]); ok {
							files = append(files, jsonObj{"type": "image", "transfer_method": "remote_url", "url": url})
						}
					case "file":
						if !isWorkflow {
							continue
						}
						fileObj, _ := asObj(block["file"])
						if url, ok := asStr(fileObj["url"]); ok {
							files = append(files, jsonObj{"type": "document", "transfer_method": "remote_url", "url": url})
						}
					}
				}
			}
		}
		out["query"] = query.String()
		if len(files) > 0 {
			out["files"] = files
		}
	}

	if tools, ok := parsed["tools"]; ok {
		out["tools"] = tools
	}

	if !isWorkflow {
		if chatID := st.chatID; chatID != "" {
			out["conversation_id"] = chatID
		}
	}

	if user, ok := parsed["user"]; ok {
		out["user"] = user
	}

	return json.Marshal(out)
}

func (p *difyProvider) validateBody(body jsonObj, isWorkflow bool) error {
	if messages, ok := asArr(body["messages"]); ok {
		for _, m := range messages {
			msg, ok := asObj(m)
			if !ok {
				continue
			}
			content, ok := asArr(msg["content"])
			if !ok {
				continue
			}
			for _, b := range content {
				block, ok := asObj(b)
				if !ok {
					continue
				}
				switch blockType(block) {
				case "image_url":
					if isWorkflow {
						return errValidation("images not supported in workflows")
					}
					imageURLObj, _ := asObj(block["image_url"])
					url, ok := asStr(imageURLObj["url"])
					if !ok {
						return errValidation("invalid image URL")
					}
					if _, err := fetchAndEncodeImage(p.client, url, policyDifyChat); err != nil {
						return err
					}
				case "file":
					if !isWorkflow {
						return errValidation("document files not supported in chat flows")
					}
					fileObj, _ := asObj(block["file"])
					url, ok := asStr(fileObj["url"])
					if !ok {
						return errValidation("invalid file URL")
					}
					if _, err := fetchAndEncodeImage(p.client, url, policyDifyWorkflow); err != nil {
						return err
					}
				}
			}
		}
	}

	if tools, ok := asArr(body["tools"]); ok {
		for _, t := range tools {
			tool, ok := asObj(t)
			if !ok {
				continue
			}
			if typ, _ := asStr(tool["type"]); typ != "function" {
				return errValidation("unsupported tool type")
			}
			fn, ok := asObj(tool["function"])
			if !ok {
				return errValidation("function tool configuration is invalid")
			}
			if _, ok := asStr(fn["name"]); !ok {
				return errValidation("function tool must have a name")
			}
			if _, ok := fn["parameters"]; !ok {
				return errValidation("function tool must have parameters")
			}
		}
	}
	return nil
}

func (p *difyProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	workflowID := header.Get("x-dify-workflow-id")
	st.isWorkflow = workflowID != ""
	st.chatID = header.Get("x-chat-id")

	if !strings.Contains(path, "/chat/completions") {
		return path, nil
	}
	if workflowID != "" {
		return "/v1/workflows/" + workflowID + "/run", nil
	}
	return "/v1/chat-messages", nil
}

func (p *difyProvider) RequiresSigning() bool { return false }

func (p *difyProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *difyProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, difyChunkTransform()), nil
}

// difyChunkTransform rewrites Dify's native event JSON into an OpenAI
// chat.completion.chunk envelope carrying choices[0].delta.content.
func difyChunkTransform() lineTransform {
	return func(payload string) (string, bool) {
		var event jsonObj
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return payload, true
		}
		out := jsonObj{
			"id":      valueOr(event["id"], "msg"),
			"object":  "chat.completion.chunk",
			"created": valueOr(event["created"], float64(0)),
			"model":   "dify",
			"choices": jsonArr{jsonObj{
				"index": float64(0),
				"delta": jsonObj{
					"content": strOr(event["answer"], ""),
				},
				"finish_reason": event["finish_reason"],
			}},
		}
		b, err := json.Marshal(out)
		if err != nil {
			return payload, true
		}
		return string(b), true
	}
}
