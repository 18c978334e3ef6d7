package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{errInvalidMethod(), http.StatusMethodNotAllowed},
		{errInvalidRequestFormat(), http.StatusBadRequest},
		{errValidation("bad"), http.StatusBadRequest},
		{errBodyRead("too big"), http.StatusBadRequest},
		{errInvalidHeader(), http.StatusBadRequest},
		{errMissingApiKey(), http.StatusUnauthorized},
		{errUnsupportedModel(), http.StatusBadRequest},
		{errUnsupportedFeature("no tools"), http.StatusBadRequest},
		{errProcessing("oops"), http.StatusInternalServerError},
		{errEventStream("bad frame"), http.StatusInternalServerError},
		{errSigning("bad creds"), http.StatusInternalServerError},
		{errProxy("dial failed"), http.StatusBadGateway},
		{errRequest("bad"), http.StatusBadRequest},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Status(), string(c.err.Kind))
	}
}

func TestAppErrorUnknownKindDefaultsTo500(t *testing.T) {
	err := &AppError{Kind: ErrorKind("Bogus")}
	assert.Equal(t, http.StatusInternalServerError, err.Status())
}

func TestWriteErrorRendersUniformEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, nil, errMissingApiKey())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing API key", body.Error.Message)
	assert.Equal(t, "MissingApiKey", body.Error.Type)
	assert.Equal(t, http.StatusUnauthorized, body.Error.Code)
}

func TestWriteErrorWrapsPlainErrorAsProcessingError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, nil, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ProcessingError", body.Error.Type)
	assert.Equal(t, "boom", body.Error.Message)
}
