package main

import (
	"net/http"
	"time"
)

// providerState is the mutable, per-request state an adapter accumulates as
// the pipeline walks it through BeforeRequest, ProcessHeaders, and
// PrepareRequestBody. It never outlives one request; adapters that need to
// observe something in WrapResponse (e.g. Bedrock's resolved model name,
// used to stamp streamed chunks) stash it here instead of in adapter fields.
type providerState struct {
	Region          string
	Model           string
	BaseURLOverride string

	// Dify-specific: resolved by TransformPathWithHeaders, consumed by
	// PrepareRequestBody.
	isWorkflow bool
	chatID     string
}

// Provider is the single contract every upstream adapter satisfies. The
// pipeline (C5) drives these in a fixed order; see proxy.go.
type Provider interface {
	Name() string

	// BaseURL returns the upstream scheme+host for this request. Most
	// adapters return a constant; Bedrock derives it from st.Region.
	BaseURL(st *providerState) string

	// BeforeRequest inspects (never mutates) the inbound headers and raw
	// body to populate st ahead of header/body rewriting. Most adapters
	// are no-ops here.
	BeforeRequest(st *providerState, header http.Header, body []byte) error

	// ProcessHeaders builds the outbound header set from the inbound one.
	// Must set at least Content-Type and resolve authentication; returns
	// MissingApiKey/InvalidHeader on failure.
	ProcessHeaders(st *providerState, header http.Header) (http.Header, error)

	// PrepareRequestBody rewrites the inbound JSON body into the
	// upstream's schema. May perform outbound HTTP (image fetch) through
	// the adapter's shared http.Client; those fetches carry no request
	// context, so they have no deadline and are not cancelled when the
	// client disconnects.
	PrepareRequestBody(st *providerState, body []byte) ([]byte, error)

	// TransformPathWithHeaders maps the inbound request path to the
	// upstream path, given the original inbound headers (Dify needs
	// x-dify-workflow-id from the client to branch on workflow vs chat).
	TransformPathWithHeaders(st *providerState, path string, header http.Header) (string, error)

	// RequiresSigning reports whether SignRequest must run after the body
	// is finalized (true only for Bedrock).
	RequiresSigning() bool

	// SignRequest mutates header in place to add a signature. Only called
	// when RequiresSigning is true.
	SignRequest(st *providerState, method, url string, header http.Header, body []byte) error

	// WrapResponse adapts the upstream *http.Response into the body the
	// client receives: passthrough, SSE-line rewriting, or (Bedrock) the
	// event-stream translator. Returns the status, header set and body to
	// send; see wrappedResponse in streaming.go.
	WrapResponse(st *providerState, upstream *http.Response) (*wrappedResponse, error)
}

// newHTTPClient returns the shared outbound client used for both upstream
// dispatch and image fetches. The client itself stays untimed; upstream
// dispatch is bounded by the proxy's per-request context, while image
// fetches run without a deadline.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// newProviderAdapter looks up the adapter for a ProviderIdentity string and
// reports false for an empty or unknown one. The proxy rejects a missing
// x-provider header before calling this (InvalidRequestFormat) and maps a
// false result to UnsupportedModel.
func newProviderAdapter(identity string, client *http.Client) (Provider, bool) {
	switch identity {
	case "openai":
		return &openAIProvider{client: client}, true
	case "anthropic":
		return &anthropicProvider{client: client}, true
	case "bedrock":
		return &bedrockProvider{client: client}, true
	case "fireworks":
		return &fireworksProvider{client: client}, true
	case "groq":
		return &groqProvider{client: client}, true
	case "together":
		return &togetherProvider{client: client}, true
	case "dify":
		return &difyProvider{client: client}, true
	default:
		return nil, false
	}
}
