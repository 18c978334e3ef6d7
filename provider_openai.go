package main

import (
	"encoding/json"
	"net/http"
)

const openAIDefaultModel = "gpt-4-turbo-preview"
const openAIOrgHeader = "OpenAI-Organization"

type openAIProvider struct {
	client *http.Client
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) BaseURL(st *providerState) string {
	return "https://api.openai.com"
}

func (p *openAIProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	return nil
}

func (p *openAIProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	if apiKey := header.Get("x-magicapi-api-key"); apiKey != "" {
		out.Set("Authorization", "Bearer "+apiKey)
	} else if auth := header.Get("Authorization"); auth != "" {
		out.Set("Authorization", auth)
	} else {
		return nil, errMissingApiKey()
	}

	if org := header.Get(openAIOrgHeader); org != "" {
		out.Set(openAIOrgHeader, org)
	}
	return out, nil
}

func (p *openAIProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	if err := validateOpenAIStyleBody(p.client, parsed, policyStandardImage); err != nil {
		return nil, err
	}

	if _, ok := parsed["model"]; !ok {
		parsed["model"] = openAIDefaultModel
	}

	return json.Marshal(parsed)
}

// validateOpenAIStyleBody checks image_url blocks and function-tool schemas
// shared by any adapter that otherwise forwards the canonical body as-is.
func validateOpenAIStyleBody(client httpDoer, body jsonObj, policy imagePolicy) error {
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
				if !ok || blockType(block) != "image_url" {
					continue
				}
				imageURLObj, _ := asObj(block["image_url"])
				url, ok := asStr(imageURLObj["url"])
				if !ok || url == "" {
					return errValidation("invalid image URL")
				}
				if _, err := fetchAndEncodeImage(client, url, policy); err != nil {
					return err
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

func (p *openAIProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	return path, nil
}

func (p *openAIProvider) RequiresSigning() bool { return false }

func (p *openAIProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	return nil
}

func (p *openAIProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	if !isEventStreamResponse(upstream) {
		return passthroughResponse(upstream), nil
	}
	return wrapSSELines(upstream, stripEmptyLinesTransform()), nil
}
