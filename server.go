package main

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// Server is the thin HTTP front: health check, a permissive CORS layer, and
// gzip compression for any response the proxy did not already mark as SSE.
// It never buffers the proxy's response; compression wraps the
// ResponseWriter so streaming responses bypass it.
type Server struct {
	mux   *http.ServeMux
	proxy *Proxy
}

func NewServer(cfg AppConfig) *Server {
	proxy := NewProxy(cfg)
	s := &Server{
		mux:   http.NewServeMux(),
		proxy: proxy,
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/v1/", s.handleProxy)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsHeaders(w.Header())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		s.proxy.ServeHTTP(w, r)
		return
	}
	gw := newGzipResponseWriter(w)
	defer gw.Close()
	s.proxy.ServeHTTP(gw, r)
}

func corsHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Expose-Headers", "*")
}

// gzipResponseWriter compresses the body unless the handler declares an
// SSE content type, in which case it passes writes through untouched — the
// pipeline never buffers a stream just to compress it. It also passes
// through untouched when the upstream response already set a
// Content-Encoding (copyHeaders has Add-ed it onto this writer's header map
// by the time WriteHeader runs): re-gzipping an already-encoded body would
// leave the header claiming a single gzip layer over bytes that are
// actually double-encoded.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz       *gzip.Writer
	passthru bool
	started  bool
}

func newGzipResponseWriter(w http.ResponseWriter) *gzipResponseWriter {
	return &gzipResponseWriter{ResponseWriter: w}
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	alreadyEncoded := g.Header().Get("Content-Encoding") != ""
	if strings.HasPrefix(g.Header().Get("Content-Type"), "text/event-stream") || alreadyEncoded {
		g.passthru = true
	} else {
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Del("Content-Length")
		g.gz = gzip.NewWriter(g.ResponseWriter)
	}
	g.started = true
	g.ResponseWriter.WriteHeader(status)
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if !g.started {
		g.WriteHeader(http.StatusOK)
	}
	if g.passthru {
		return g.ResponseWriter.Write(p)
	}
	return g.gz.Write(p)
}

func (g *gzipResponseWriter) Flush() {
	if g.gz != nil {
		g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (g *gzipResponseWriter) Close() error {
	if g.gz != nil {
		return g.gz.Close()
	}
	return nil
}

var _ io.Writer = (*gzipResponseWriter)(nil)
