package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// imagePolicy bounds the content types and byte size an adapter will accept
// for a remote image (or document, for Dify workflow attachments) reference.
type imagePolicy struct {
	AllowedTypes []string
	MaxBytes     int64
}

var (
	policyStandardImage = imagePolicy{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		MaxBytes:     20 * 1024 * 1024,
	}
	policyBedrockImage = imagePolicy{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		MaxBytes:     5 * 1024 * 1024,
	}
	policyDifyChat = imagePolicy{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		MaxBytes:     10 * 1024 * 1024,
	}
	policyDifyWorkflow = imagePolicy{
		AllowedTypes: []string{"application/pdf", "application/msword", "text/plain"},
		MaxBytes:     50 * 1024 * 1024,
	}
)

func (p imagePolicy) allows(contentType string) bool {
	for _, t := range p.AllowedTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// httpDoer is the capability the image helper needs from an HTTP client.
// Adapters normally share one *http.Client; tests substitute a stub.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetchAndEncodeImage issues a HEAD to validate content-type/content-length
// against policy, then a GET capped at policy.MaxBytes regardless of what
// content-length claimed, and returns the base64 encoding of the body.
// Validation always happens before any body byte is read, per spec: an
// oversize or wrong-type reference fails before the GET is ever issued.
func fetchAndEncodeImage(client httpDoer, url string, policy imagePolicy) (string, error) {
	headReq, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return "", errValidation(fmt.Sprintf("invalid image URL: %v", err))
	}
	headResp, err := client.Do(headReq)
	if err != nil {
		return "", errValidation(fmt.Sprintf("failed to validate image URL: %v", err))
	}
	headResp.Body.Close()

	contentType := headResp.Header.Get("Content-Type")
	if !policy.allows(contentType) {
		return "", errValidation(fmt.Sprintf("unsupported content type: %s", contentType))
	}

	if cl := headResp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > policy.MaxBytes {
			return "", errValidation(fmt.Sprintf("image size %d exceeds maximum of %d bytes", n, policy.MaxBytes))
		}
	}

	getReq, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", errValidation(fmt.Sprintf("invalid image URL: %v", err))
	}
	getResp, err := client.Do(getReq)
	if err != nil {
		return "", errProcessing(fmt.Sprintf("failed to fetch image: %v", err))
	}
	defer getResp.Body.Close()

	// Content-Length on the HEAD response is advisory; an absent or lying
	// value must not defeat the cap, so the read itself is bounded.
	limited := io.LimitReader(getResp.Body, policy.MaxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", errProcessing(fmt.Sprintf("failed to read image bytes: %v", err))
	}
	if int64(len(data)) > policy.MaxBytes {
		return "", errValidation(fmt.Sprintf("image size exceeds maximum of %d bytes", policy.MaxBytes))
	}

	return base64.StdEncoding.EncodeToString(data), nil
}
