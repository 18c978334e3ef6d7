package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDoer lets tests script HEAD/GET responses without a real network call.
type stubDoer struct {
	head *http.Response
	get  *http.Response
	// getCalled records whether a GET was ever issued, so tests can assert
	// validation rejected a reference before any body byte was read.
	getCalled bool
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodHead {
		return s.head, nil
	}
	s.getCalled = true
	return s.get, nil
}

func jsonResponse(contentType string, contentLength int, body []byte) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if contentLength >= 0 {
		h.Set("Content-Length", strconv.Itoa(contentLength))
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func TestFetchAndEncodeImageHappyPath(t *testing.T) {
	data := []byte("fake-image-bytes")
	doer := &stubDoer{
		head: jsonResponse("image/png", len(data), nil),
		get:  jsonResponse("image/png", len(data), data),
	}

	encoded, err := fetchAndEncodeImage(doer, "https://example.com/a.png", policyStandardImage)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), encoded)
}

func TestFetchAndEncodeImageRejectsDisallowedContentTypeBeforeGet(t *testing.T) {
	doer := &stubDoer{
		head: jsonResponse("application/zip", 10, nil),
	}

	_, err := fetchAndEncodeImage(doer, "https://example.com/a.zip", policyStandardImage)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidationError, appErr.Kind)
	assert.False(t, doer.getCalled, "a disallowed content-type must reject before any GET")
}

func TestFetchAndEncodeImageRejectsOversizeContentLengthBeforeGet(t *testing.T) {
	doer := &stubDoer{
		head: jsonResponse("image/png", int(policyStandardImage.MaxBytes)+1, nil),
	}

	_, err := fetchAndEncodeImage(doer, "https://example.com/big.png", policyStandardImage)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidationError, appErr.Kind)
	assert.False(t, doer.getCalled, "an oversize Content-Length must reject before any GET")
}

func TestFetchAndEncodeImageCapsReadRegardlessOfDeclaredLength(t *testing.T) {
	small := []byte("ok")
	oversizedBody := bytes.Repeat([]byte{0xff}, int(policyStandardImage.MaxBytes)+10)
	doer := &stubDoer{
		// HEAD lies about the size so only the bounded GET read catches it.
		head: jsonResponse("image/png", len(small), nil),
		get:  jsonResponse("image/png", len(small), oversizedBody),
	}

	_, err := fetchAndEncodeImage(doer, "https://example.com/lied.png", policyStandardImage)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidationError, appErr.Kind)
}

func TestImagePolicyAllows(t *testing.T) {
	assert.True(t, policyStandardImage.allows("image/png; charset=binary"))
	assert.False(t, policyStandardImage.allows("application/pdf"))
	assert.True(t, policyDifyWorkflow.allows("application/pdf"))
}
