package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const bedrockDefaultRegion = "us-east-1"
const bedrockDefaultModel = "amazon.titan-text-express-v1"
const bedrockFallbackModel = "anthropic.claude-v2"
const bedrockMaxToolCalls = 15

type bedrockProvider struct {
	client *http.Client
}

func (p *bedrockProvider) Name() string { return "bedrock" }

func (p *bedrockProvider) BaseURL(st *providerState) string {
	region := st.Region
	if region == "" {
		region = bedrockDefaultRegion
	}
	return "https://bedrock-runtime." + region + ".amazonaws.com"
}

func (p *bedrockProvider) BeforeRequest(st *providerState, header http.Header, body []byte) error {
	st.Region = header.Get("x-aws-region")
	if st.Region == "" {
		st.Region = bedrockDefaultRegion
	}

	st.Model = bedrockDefaultModel
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err == nil {
		if model, ok := asStr(parsed["model"]); ok && model != "" {
			st.Model = model
		} else if _, hasMessages := parsed["messages"]; hasMessages {
			st.Model = bedrockFallbackModel
		}
	}
	return nil
}

func (p *bedrockProvider) ProcessHeaders(st *providerState, header http.Header) (http.Header, error) {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	if header.Get("x-aws-access-key-id") == "" || header.Get("x-aws-secret-access-key") == "" {
		return nil, errMissingApiKey()
	}
	// Carry the credential headers forward for SignRequest, which reads and
	// then strips them from the outbound set.
	for _, k := range []string{"x-aws-access-key-id", "x-aws-secret-access-key", "x-aws-session-token", "x-aws-region"} {
		if v := header.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out, nil
}

func (p *bedrockProvider) PrepareRequestBody(st *providerState, body []byte) ([]byte, error) {
	var parsed jsonObj
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body, nil
	}

	// Idempotent: a caller that already sent Bedrock's native shape is left
	// untouched.
	if _, present := parsed["inferenceConfig"]; present {
		return body, nil
	}

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
					data, err := fetchAndEncodeImage(p.client, url, policyBedrockImage)
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
					if tc, ok := bedrockToolCallBlock(block); ok {
						if b, err := json.Marshal(tc); err == nil {
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

	out := jsonObj{
		"messages": transformed,
		"inferenceConfig": jsonObj{
			"maxTokens":   valueOr(parsed["max_tokens"], float64(1000)),
			"temperature": valueOr(parsed["temperature"], 0.7),
			"topP":        valueOr(parsed["top_p"], 1.0),
		},
	}
	return json.Marshal(out)
}

// bedrockToolCallBlock drops any call whose "type" is set to something other
// than "function" (a call with no "type" counts as a function call), along
// with calls lacking a string name and arguments, and keeps the first 15
// calls that remain. A block with no surviving calls collapses to an empty
// text block rather than an empty tool_calls envelope.
func bedrockToolCallBlock(block jsonObj) (jsonObj, bool) {
	raw, ok := block["tool_calls"]
	if !ok {
		return nil, false
	}
	calls, ok := asArr(raw)
	if !ok {
		return nil, false
	}
	out := make(jsonArr, 0, bedrockMaxToolCalls)
	for _, c := range calls {
		if len(out) >= bedrockMaxToolCalls {
			break
		}
		call, ok := asObj(c)
		if !ok {
			continue
		}
		if typ, ok := asStr(call["type"]); ok && typ != "function" {
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
		out = append(out, jsonObj{"type": "function", "function": jsonObj{"name": name, "arguments": args}})
	}
	if len(out) == 0 {
		return jsonObj{"type": "text", "text": ""}, true
	}
	return jsonObj{"type": "tool_calls", "tool_calls": out}, true
}

func (p *bedrockProvider) TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error) {
	if !strings.Contains(path, "/chat/completions") {
		return path, nil
	}
	return "/model/" + st.Model + "/invoke", nil
}

func (p *bedrockProvider) RequiresSigning() bool { return true }

func (p *bedrockProvider) SignRequest(st *providerState, method, url string, header http.Header, body []byte) error {
	accessKeyID := header.Get("x-aws-access-key-id")
	secretAccessKey := header.Get("x-aws-secret-access-key")
	sessionToken := header.Get("x-aws-session-token")
	if accessKeyID == "" || secretAccessKey == "" {
		return errMissingApiKey()
	}
	header.Del("x-aws-access-key-id")
	header.Del("x-aws-secret-access-key")
	header.Del("x-aws-session-token")
	header.Del("x-aws-region")

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return errSigning(err.Error())
	}
	req.Header = header

	creds := aws.Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
	}

	region := st.Region
	if region == "" {
		region = bedrockDefaultRegion
	}

	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, bodyHash, "bedrock", region, time.Now()); err != nil {
		return errSigning(err.Error())
	}

	for k, v := range req.Header {
		header[k] = v
	}
	return nil
}

// WrapResponse decodes the upstream event-stream body incrementally: a
// goroutine drives the decoder straight into an io.Pipe, writing (and
// effectively flushing, since a pipe write blocks until read) each
// translated SSE line as its frame decodes, exactly as wrapSSELines does
// for the other adapters' line-oriented streams. No part of the body is
// buffered in full.
func (p *bedrockProvider) WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error) {
	contentType := upstream.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/vnd.amazon.eventstream") {
		return passthroughResponse(upstream), nil
	}

	pr, pw := io.Pipe()
	go func() {
		defer upstream.Body.Close()
		err := decodeBedrockEventstream(upstream.Body, pw, st.Model, globalLogger)
		_ = pw.CloseWithError(err)
	}()

	header := sseResponseHeader(upstream.Header)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "*")

	return &wrappedResponse{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       pr,
	}, nil
}
