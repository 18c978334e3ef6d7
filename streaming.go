package main

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// wrappedResponse is what a Provider's WrapResponse returns: the status and
// headers to send to the client, and a body the pipeline copies verbatim.
// Streaming adapters hand back the read end of an io.Pipe fed line-by-line
// by a goroutine; non-streaming adapters hand back upstream.Body directly.
type wrappedResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// isStreamingRequest reports whether the inbound canonical body asked for
// an SSE response.
func isStreamingRequest(body []byte) bool {
	var req struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return false
	}
	return req.Stream
}

// isEventStreamResponse reports whether the upstream response is SSE.
func isEventStreamResponse(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream")
}

func sseResponseHeader(src http.Header) http.Header {
	h := make(http.Header, len(src)+3)
	for k, v := range src {
		h[k] = append([]string(nil), v...)
	}
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	return h
}

// lineTransform rewrites one decoded SSE "data: ..." payload (without the
// "data: " prefix or trailing newline) into its translated form. Returning
// ok=false drops the line from the output, mirroring the original source's
// "strip empty lines" passthrough behavior.
type lineTransform func(payload string) (out string, ok bool)

// wrapSSELines drives the common pattern shared by every non-Bedrock
// streaming adapter: read the upstream body line by line, rewrite each
// "data: " payload with transform, and flush immediately. Non-"data:" lines
// and "data: [DONE]" pass through untouched. This never buffers the whole
// body; translation is chunk-local per spec's streaming invariant.
func wrapSSELines(upstream *http.Response, transform lineTransform) *wrappedResponse {
	pr, pw := io.Pipe()

	go func() {
		defer upstream.Body.Close()
		reader := bufio.NewReader(upstream.Body)
		var werr error
		for werr == nil {
			line, err := reader.ReadString('\n')
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed != "" {
				if out, keep := rewriteSSELine(trimmed, transform); keep {
					_, werr = pw.Write([]byte(out + "\n"))
				}
			}
			if err != nil {
				break
			}
		}
		_ = pw.CloseWithError(werr)
	}()

	return &wrappedResponse{
		StatusCode: upstream.StatusCode,
		Header:     sseResponseHeader(upstream.Header),
		Body:       pr,
	}
}

func rewriteSSELine(line string, transform lineTransform) (string, bool) {
	if !strings.HasPrefix(line, "data: ") {
		return line, true
	}
	payload := line[len("data: "):]
	if payload == "[DONE]" {
		return line, true
	}
	out, ok := transform(payload)
	if !ok {
		return "", false
	}
	return "data: " + out, true
}

// passthroughResponse wraps an upstream response unchanged.
func passthroughResponse(upstream *http.Response) *wrappedResponse {
	return &wrappedResponse{
		StatusCode: upstream.StatusCode,
		Header:     upstream.Header,
		Body:       upstream.Body,
	}
}

// deltaToolCallTransform builds a lineTransform that rewrites
// choices[0].delta.tool_calls with the shared defaults (Anthropic,
// Fireworks, Together all use this shape for their streaming tool calls).
func deltaToolCallTransform() lineTransform {
	return func(payload string) (string, bool) {
		var event jsonObj
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return payload, true
		}
		choices, ok := asArr(event["choices"])
		if ok && len(choices) > 0 {
			if choice, ok := asObj(choices[0]); ok {
				if delta, ok := asObj(choice["delta"]); ok {
					if _, has := delta["tool_calls"]; has {
						delta["tool_calls"] = streamingToolCallDefaults(delta["tool_calls"])
					}
				}
			}
		}
		b, err := json.Marshal(event)
		if err != nil {
			return payload, true
		}
		return string(b), true
	}
}

// stripEmptyLinesTransform implements OpenAI's "passthrough, strip empty
// SSE lines" rule: empty lines are already dropped by wrapSSELines, so the
// payload itself is returned unchanged.
func stripEmptyLinesTransform() lineTransform {
	return func(payload string) (string, bool) {
		return payload, true
	}
}
