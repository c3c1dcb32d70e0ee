// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing responses that
// carry HX-Trigger events, so the dashboard partials can refresh after a
// mutation whether the caller is htmx or a plain JSON client.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"casa/internal/core"
	"casa/internal/services"
	"casa/internal/store"
)

const (
	EventTransactionCreated = "transaction:created"
	EventTransactionDeleted = "transaction:deleted"
	EventHouseholdChanged   = "household:changed"
	EventFormReset          = "form:reset"
	EventNotification       = "show-notification"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data any) *ResponseBuilder {
	if data == nil {
		data = struct{}{}
	}
	b.triggers[name] = data
	return b
}

// TriggerTransactionCreated tells listeners which ledger changed.
func (b *ResponseBuilder) TriggerTransactionCreated(ledger core.LedgerKey) *ResponseBuilder {
	return b.Trigger(EventTransactionCreated, map[string]string{"ledger": ledger.String()})
}

func (b *ResponseBuilder) TriggerTransactionDeleted(ledger core.LedgerKey) *ResponseBuilder {
	return b.Trigger(EventTransactionDeleted, map[string]string{"ledger": ledger.String()})
}

func (b *ResponseBuilder) TriggerHouseholdChanged(householdID string) *ResponseBuilder {
	return b.Trigger(EventHouseholdChanged, map[string]string{"household": householdID})
}

func (b *ResponseBuilder) TriggerFormReset() *ResponseBuilder {
	return b.Trigger(EventFormReset, nil)
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *ResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *ResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *ResponseBuilder) TriggerSuccessNotification(message string) *ResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets an HTML fragment body.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// JSON encodes v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = "application/json"
	b.body = append(body, '\n')
	return b
}

// Write sends the built response. An encoding failure turns into a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// JSONError is the API error shape: {"error": "..."}.
func JSONError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// HTMLError renders an escaped error fragment for htmx targets.
func HTMLError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// statusFor maps domain errors to HTTP status codes. The second value says
// whether the error message is safe to show to the caller.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, false
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, store.ErrAlreadyMember),
		errors.Is(err, store.ErrInvitationExists),
		errors.Is(err, store.ErrInvitationClosed):
		return http.StatusConflict, true
	default:
		return http.StatusInternalServerError, false
	}
}
