package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilderTriggers(t *testing.T) {
	rr := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerInvoiceCreated("inv-1").
		TriggerFormReset().
		BodyHTML(`<div class="success">ok</div>`).
		Write(rr)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "invoice:created") || !strings.Contains(trigger, "inv-1") {
		t.Fatalf("HX-Trigger missing invoice:created: %s", trigger)
	}
	if !strings.Contains(trigger, "form:reset") {
		t.Fatalf("HX-Trigger missing form:reset: %s", trigger)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("Content-Type = %s", ct)
	}
}

func TestHTMXResponseBuilderNoTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Fatal("HX-Trigger set without any triggers")
	}
}

func TestErrorResponseEscapesHTML(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, `<script>alert("x")</script>`).Write(rr)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatalf("message not escaped: %s", body)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Fatalf("missing error wrapper: %s", body)
	}
}

func TestMethodNotAllowedErrorSetsAllowHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	MethodNotAllowedError("POST, DELETE").Write(rr)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "POST, DELETE" {
		t.Fatalf("Allow = %q", got)
	}
}

func TestTriggerNotificationPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().TriggerErrorNotification("boom").Write(rr)

	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{"show-notification", "boom", "error"} {
		if !strings.Contains(trigger, want) {
			t.Fatalf("HX-Trigger missing %q: %s", want, trigger)
		}
	}
}
