package main

import (
	"encoding/json"
	"net/http"
)

// ErrorKind is the closed set of failure classifications the gateway can
// produce. Every request failure, from header parsing through upstream
// dispatch, maps to exactly one kind and one HTTP status.
type ErrorKind string

const (
	KindInvalidMethod        ErrorKind = "InvalidMethod"
	KindInvalidRequestFormat ErrorKind = "InvalidRequestFormat"
	KindValidationError      ErrorKind = "ValidationError"
	KindBodyReadError        ErrorKind = "BodyReadError"
	KindInvalidHeader        ErrorKind = "InvalidHeader"
	KindMissingApiKey        ErrorKind = "MissingApiKey"
	KindUnsupportedModel     ErrorKind = "UnsupportedModel"
	KindUnsupportedFeature   ErrorKind = "UnsupportedFeature"
	KindProcessingError      ErrorKind = "ProcessingError"
	KindEventStreamError     ErrorKind = "EventStreamError"
	KindSigningError         ErrorKind = "SigningError"
	KindProxyError           ErrorKind = "ProxyError"
	KindRequestError         ErrorKind = "RequestError"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidMethod:        http.StatusMethodNotAllowed,
	KindInvalidRequestFormat: http.StatusBadRequest,
	KindValidationError:      http.StatusBadRequest,
	KindBodyReadError:        http.StatusBadRequest,
	KindInvalidHeader:        http.StatusBadRequest,
	KindMissingApiKey:        http.StatusUnauthorized,
	KindUnsupportedModel:     http.StatusBadRequest,
	KindUnsupportedFeature:   http.StatusBadRequest,
	KindProcessingError:      http.StatusInternalServerError,
	KindEventStreamError:     http.StatusInternalServerError,
	KindSigningError:         http.StatusInternalServerError,
	KindProxyError:           http.StatusBadGateway,
	KindRequestError:         http.StatusBadRequest,
}

// AppError is the gateway's single error type. It always carries a Kind so
// callers (and the HTTP writer below) never need to re-classify it.
type AppError struct {
	Kind ErrorKind
	Msg  string
}

func (e *AppError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Status returns the fixed HTTP status for the error's kind.
func (e *AppError) Status() int {
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newAppError(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Msg: msg}
}

func errInvalidMethod() *AppError { return newAppError(KindInvalidMethod, "invalid HTTP method") }
func errInvalidRequestFormat() *AppError {
	return newAppError(KindInvalidRequestFormat, "invalid request format")
}
func errValidation(msg string) *AppError    { return newAppError(KindValidationError, msg) }
func errBodyRead(msg string) *AppError      { return newAppError(KindBodyReadError, msg) }
func errInvalidHeader() *AppError           { return newAppError(KindInvalidHeader, "invalid header") }
func errMissingApiKey() *AppError           { return newAppError(KindMissingApiKey, "missing API key") }
func errUnsupportedModel() *AppError        { return newAppError(KindUnsupportedModel, "unsupported model") }
func errUnsupportedFeature(msg string) *AppError {
	return newAppError(KindUnsupportedFeature, msg)
}
func errProcessing(msg string) *AppError    { return newAppError(KindProcessingError, msg) }
func errEventStream(msg string) *AppError   { return newAppError(KindEventStreamError, msg) }
func errSigning(msg string) *AppError       { return newAppError(KindSigningError, msg) }
func errProxy(msg string) *AppError         { return newAppError(KindProxyError, msg) }
func errRequest(msg string) *AppError       { return newAppError(KindRequestError, msg) }

type errorBody struct {
	Error errorBodyInner `json:"error"`
}

type errorBodyInner struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// writeError renders an AppError (or any error, wrapped as ProcessingError)
// onto w as the gateway's uniform JSON error envelope. It never retries and
// never inspects a body that may have already been partially written.
func writeError(w http.ResponseWriter, log *requestLogger, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = newAppError(KindProcessingError, err.Error())
	}
	if log != nil {
		log.Errorw("request failed", "kind", string(appErr.Kind), "error", appErr.Error())
	}
	status := appErr.Status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorBody{Error: errorBodyInner{
		Message: appErr.Error(),
		Type:    string(appErr.Kind),
		Code:    status,
	}}
	_ = json.NewEncoder(w).Encode(body)
}
