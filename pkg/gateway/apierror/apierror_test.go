package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestFromError_ContextCanceled_Is408(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != TypeAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_DeadlineExceeded_Is504(t *testing.T) {
	_, status := FromError(context.DeadlineExceeded, "req_test")
	if status != 504 {
		t.Fatalf("status=%d", status)
	}
}

func TestFromError_CanonicalError(t *testing.T) {
	ce, status := FromError(&Error{Type: TypeNotFound, Message: "session not found"}, "req_test")
	if status != 404 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != TypeNotFound || ce.RequestID != "req_test" {
		t.Fatalf("error=%+v", ce)
	}
}

func TestFromError_UnknownOpaque(t *testing.T) {
	ce, status := FromError(errors.New("redis: connection refused"), "req_test")
	if status != 500 {
		t.Fatalf("status=%d", status)
	}
	if ce.Message != "internal error" {
		t.Fatalf("message=%q leaks detail", ce.Message)
	}
}

func TestStatusFromType(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{TypeInvalidRequest, 400},
		{TypeAuthentication, 401},
		{TypeNotFound, 404},
		{TypeCapacity, 503},
		{TypeUpstream, 502},
		{TypeAPI, 500},
	}
	for _, tt := range tests {
		if got := StatusFromType(tt.typ); got != tt.want {
			t.Fatalf("StatusFromType(%q) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestWriteEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, 503, &Error{Type: TypeCapacity, Message: "session capacity exceeded"})

	if rec.Code != 503 {
		t.Fatalf("code=%d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Type != TypeCapacity {
		t.Fatalf("envelope=%+v", env)
	}
}
