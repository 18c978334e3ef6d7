package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProcessHeadersPrefersMagicAPIKey(t *testing.T) {
	p := &openAIProvider{client: newHTTPClient()}
	header := http.Header{
		"X-Magicapi-Api-Key": []string{"magic-key"},
		"Authorization":      []string{"Bearer should-be-ignored"},
	}
	out, err := p.ProcessHeaders(&providerState{}, header)
	require.NoError(t, err)
	assert.Equal(t, "Bearer magic-key", out.Get("Authorization"))
}

func TestOpenAIProcessHeadersFallsBackToAuthorization(t *testing.T) {
	p := &openAIProvider{client: newHTTPClient()}
	out, err := p.ProcessHeaders(&providerState{}, http.Header{"Authorization": []string{"Bearer sk-abc"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-abc", out.Get("Authorization"))
}

func TestOpenAIProcessHeadersMissingAuthIsMissingApiKey(t *testing.T) {
	p := &openAIProvider{client: newHTTPClient()}
	_, err := p.ProcessHeaders(&providerState{}, http.Header{})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindMissingApiKey, appErr.Kind)
}

func TestOpenAIPrepareRequestBodyDefaultsModelWhenAbsent(t *testing.T) {
	p := &openAIProvider{client: newHTTPClient()}
	out, err := p.PrepareRequestBody(&providerState{}, []byte(`{"messages":[]}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), openAIDefaultModel)
}

func TestOpenAIPrepareRequestBodyRejectsUnsupportedToolType(t *testing.T) {
	p := &openAIProvider{client: newHTTPClient()}
	body := []byte(`{"messages":[],"tools":[{"type":"retrieval"}]}`)

	_, err := p.PrepareRequestBody(&providerState{}, body)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidationError, appErr.Kind)
}
