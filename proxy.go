// proxy.go
package main

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Proxy drives the C5 request pipeline: one adapter instance is created per
// request (the reference design re-instantiates stateless adapters and uses
// st.Region/st.BaseURLOverride for the two stateful ones, per spec.md's
// Concurrency & Resource Model), so no locking is needed across requests.
type Proxy struct {
	client *http.Client
	cfg    AppConfig
}

func NewProxy(cfg AppConfig) *Proxy {
	return &Proxy{
		client: newHTTPClient(),
		cfg:    cfg,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	if r.Method != http.MethodPost {
		writeError(w, nil, errInvalidMethod())
		return
	}

	// Step 1: extract x-provider.
	identity := r.Header.Get("x-provider")
	if identity == "" {
		writeError(w, nil, errInvalidRequestFormat())
		return
	}

	// Step 2: build or look up the adapter.
	adapter, ok := newProviderAdapter(identity, p.client)
	if !ok {
		writeError(w, newRequestLogger(globalSugar(), requestID, identity), errUnsupportedModel())
		return
	}

	log := newRequestLogger(globalSugar(), requestID, identity)
	st := &providerState{}

	// Step 3 (path half): snapshot inbound headers; path is resolved after
	// BeforeRequest since Dify needs the inbound x-dify-* headers and
	// Bedrock needs st.Model, both set below.
	inboundHeaders := r.Header.Clone()
	path := r.URL.Path

	// Step 4: drain the inbound body, bounded by max_request_size.
	var body []byte
	if r.Body != nil {
		limited := io.LimitReader(r.Body, p.cfg.MaxRequestSize+1)
		b, err := io.ReadAll(limited)
		r.Body.Close()
		if err != nil {
			writeError(w, log, errBodyRead(err.Error()))
			return
		}
		if int64(len(b)) > p.cfg.MaxRequestSize {
			writeError(w, log, errBodyRead("request body exceeds max_request_size"))
			return
		}
		body = b
	}

	// Step 5.
	if err := adapter.BeforeRequest(st, inboundHeaders, body); err != nil {
		writeError(w, log, err)
		return
	}

	upstreamPath, err := adapter.TransformPathWithHeaders(st, path, inboundHeaders)
	if err != nil {
		writeError(w, log, err)
		return
	}
	targetURL := adapter.BaseURL(st) + upstreamPath
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	// Step 6.
	outboundHeaders, err := adapter.ProcessHeaders(st, inboundHeaders)
	if err != nil {
		writeError(w, log, err)
		return
	}

	// Step 7.
	outboundBody, err := adapter.PrepareRequestBody(st, body)
	if err != nil {
		writeError(w, log, err)
		return
	}

	// Step 8.
	if adapter.RequiresSigning() {
		if err := adapter.SignRequest(st, http.MethodPost, targetURL, outboundHeaders, outboundBody); err != nil {
			writeError(w, log, err)
			return
		}
	}

	ctx := r.Context()
	if p.cfg.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ResponseTimeout)
		defer cancel()
	}

	proxyReq, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(outboundBody))
	if err != nil {
		writeError(w, log, errRequest(err.Error()))
		return
	}
	proxyReq.Header = outboundHeaders

	// Step 9.
	resp, err := p.client.Do(proxyReq)
	if err != nil {
		writeError(w, log, errProxy(err.Error()))
		return
	}
	defer resp.Body.Close()

	// Step 10.
	wrapped, err := adapter.WrapResponse(st, resp)
	if err != nil {
		writeError(w, log, err)
		return
	}
	defer wrapped.Body.Close()

	copyHeaders(w.Header(), wrapped.Header)
	w.WriteHeader(wrapped.StatusCode)

	// Step 11: stream until the upstream (or wrapper) closes.
	if flusher, ok := w.(http.Flusher); ok {
		flushCopy(w, wrapped.Body, flusher)
		return
	}
	io.Copy(w, wrapped.Body)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// flushCopy streams src to dst a chunk at a time, flushing after each write
// so SSE clients observe each translated line as it is produced rather than
// once the handler's buffer fills.
func flushCopy(dst io.Writer, src io.Reader, flusher http.Flusher) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}
