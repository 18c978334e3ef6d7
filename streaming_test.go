package main

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStreamingRequest(t *testing.T) {
	assert.True(t, isStreamingRequest([]byte(`{"stream":true}`)))
	assert.False(t, isStreamingRequest([]byte(`{"stream":false}`)))
	assert.False(t, isStreamingRequest([]byte(`{}`)))
	assert.False(t, isStreamingRequest([]byte(`not json`)))
}

func TestIsEventStreamResponse(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Type": []string{"text/event-stream; charset=utf-8"}}}
	assert.True(t, isEventStreamResponse(resp))

	resp2 := &http.Response{Header: http.Header{"Content-Type": []string{"application/json"}}}
	assert.False(t, isEventStreamResponse(resp2))
}

func TestSSEResponseHeaderSetsRequiredFields(t *testing.T) {
	src := http.Header{"X-Request-Id": []string{"abc"}}
	out := sseResponseHeader(src)
	assert.Equal(t, "text/event-stream", out.Get("Content-Type"))
	assert.Equal(t, "no-cache", out.Get("Cache-Control"))
	assert.Equal(t, "keep-alive", out.Get("Connection"))
	assert.Equal(t, "abc", out.Get("X-Request-Id"))
}

func newUpstreamResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestWrapSSELinesAppliesTransformPerLine(t *testing.T) {
	upstream := newUpstreamResponse("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	wrapped := wrapSSELines(upstream, func(payload string) (string, bool) {
		return strings.ReplaceAll(payload, "hi", "bye"), true
	})

	out, err := io.ReadAll(wrapped.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), "bye")
	assert.Contains(t, string(out), "data: [DONE]")
}

func TestWrapSSELinesDropsFilteredLines(t *testing.T) {
	upstream := newUpstreamResponse("data: drop-me\n\ndata: keep-me\n\n")
	wrapped := wrapSSELines(upstream, func(payload string) (string, bool) {
		if payload == "drop-me" {
			return "", false
		}
		return payload, true
	})

	out, err := io.ReadAll(wrapped.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "drop-me")
	assert.Contains(t, string(out), "keep-me")
}

func TestRewriteSSELinePassesThroughDone(t *testing.T) {
	called := false
	out, keep := rewriteSSELine("data: [DONE]", func(string) (string, bool) {
		called = true
		return "", false
	})
	assert.True(t, keep)
	assert.Equal(t, "data: [DONE]", out)
	assert.False(t, called, "transform must not run on [DONE]")
}

func TestRewriteSSELinePassesThroughNonDataLines(t *testing.T) {
	out, keep := rewriteSSELine("event: ping", func(payload string) (string, bool) {
		return "should-not-be-used", true
	})
	assert.True(t, keep)
	assert.Equal(t, "event: ping", out)
}

func TestPassthroughResponseCopiesFields(t *testing.T) {
	upstream := &http.Response{
		StatusCode: http.StatusCreated,
		Header:     http.Header{"X-Foo": []string{"bar"}},
		Body:       io.NopCloser(bytes.NewReader([]byte("body"))),
	}
	wrapped := passthroughResponse(upstream)
	assert.Equal(t, http.StatusCreated, wrapped.StatusCode)
	assert.Equal(t, "bar", wrapped.Header.Get("X-Foo"))
}

func TestDeltaToolCallTransformAppliesDefaults(t *testing.T) {
	transform := deltaToolCallTransform()
	payload := `{"choices":[{"delta":{"tool_calls":[{}]}}]}`
	out, ok := transform(payload)
	require.True(t, ok)
	assert.Contains(t, out, `"id":"call_0"`)
	assert.Contains(t, out, `"type":"function"`)
}

func TestDeltaToolCallTransformLeavesNonToolCallDeltaAlone(t *testing.T) {
	transform := deltaToolCallTransform()
	payload := `{"choices":[{"delta":{"content":"hi"}}]}`
	out, ok := transform(payload)
	require.True(t, ok)
	assert.Contains(t, out, `"content":"hi"`)
}

func TestStripEmptyLinesTransformIsIdentity(t *testing.T) {
	transform := stripEmptyLinesTransform()
	out, ok := transform("anything")
	assert.True(t, ok)
	assert.Equal(t, "anything", out)
}

// readAllLines drains an SSE body for assertions that care about line count.
func readAllLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
