// Package http serves the expense book web UI and its JSON endpoints.
//
// This file holds the builder for HTMX responses: a fluent API over the
// HX-Trigger header and consistent HTML fragments.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HTMX events raised by the server.
const (
	EventRecordCreated    = "record:created"
	EventRecordDeleted    = "record:deleted"
	EventDashboardRefresh = "dashboard:refresh"
	EventFormReset        = "form:reset"
	EventNotification     = "show-notification"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerRecordCreated announces a new record and the month it falls in.
func (b *HTMXResponseBuilder) TriggerRecordCreated(id, month string) *HTMXResponseBuilder {
	return b.Trigger(EventRecordCreated, map[string]string{"id": id, "month": month})
}

// TriggerRecordDeleted announces a removed record.
func (b *HTMXResponseBuilder) TriggerRecordDeleted(id string) *HTMXResponseBuilder {
	return b.Trigger(EventRecordDeleted, map[string]string{"id": id})
}

// TriggerDashboardRefresh asks the page to reload the dashboard for month,
// or for the month on screen when month is empty.
func (b *HTMXResponseBuilder) TriggerDashboardRefresh(month string) *HTMXResponseBuilder {
	return b.Trigger(EventDashboardRefresh, map[string]string{"month": month})
}

// TriggerFormReset adds the form:reset trigger.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Redirect makes htmx navigate the whole page to url.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	b.headers["HX-Redirect"] = url
	return b
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyString sets the response body as a string.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error" role="alert">` + escapedMsg + `</div>`)
}

// SuccessResponse is the HTML fragment for a completed action.
func SuccessResponse(message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		BodyHTML(`<div class="success" role="status">` + template.HTMLEscapeString(message) + `</div>`)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
