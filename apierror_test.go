package goCtrl

import (
	"errors"
	"strings"
	"testing"
)

func TestTranslateStructuredBody(t *testing.T) {
	body := []byte(`{"errors":["user not found"],"type":"https://errors.example/not-found","title":"Not Found","statusCode":404,"instance":"/api/v1/users/u-1","requestKey":"rk-1"}`)

	err := translateAPIError(404, body, "/api/v1/users/u-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Title != "Not Found" || apiErr.Type != "https://errors.example/not-found" {
		t.Fatalf("unexpected fields: %+v", apiErr)
	}
	if apiErr.RequestKey != "rk-1" {
		t.Fatalf("request key lost: %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "Not Found") {
		t.Fatalf("message should use the title, got %q", apiErr.Error())
	}
}

func TestTranslateTitlelessBody(t *testing.T) {
	body := []byte(`{"errors":["field a is required","field b is required"],"type":"validation","statusCode":400}`)

	err := translateAPIError(400, body, "/api/v1/users")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Title != "" {
		t.Fatalf("title should stay empty, got %q", apiErr.Title)
	}
	msg := apiErr.Error()
	if !strings.Contains(msg, "field a is required") || !strings.Contains(msg, "field b is required") {
		t.Fatalf("message should join the error list, got %q", msg)
	}
}

func TestTranslateStatusCodeOverridesBody(t *testing.T) {
	body := []byte(`{"errors":["x"],"statusCode":200}`)

	err := translateAPIError(502, body, "/p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 502 {
		t.Fatalf("transport status must win, got %d", apiErr.StatusCode)
	}
}

func TestTranslateInstanceDefaultsToPath(t *testing.T) {
	err := translateAPIError(400, []byte(`{"errors":["x"],"statusCode":400}`), "/api/v1/roles")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Instance != "/api/v1/roles" {
		t.Fatalf("instance should default to the path, got %q", apiErr.Instance)
	}

	err = translateAPIError(400, []byte(`{"errors":["x"],"statusCode":400,"instance":"/explicit"}`), "/api/v1/roles")
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Instance != "/explicit" {
		t.Fatalf("explicit instance must be kept, got %q", apiErr.Instance)
	}
}

func TestTranslateUnstructuredBodyKeptRaw(t *testing.T) {
	for _, body := range []string{"", "upstream exploded", `{"message":"nope"}`, `["not","an","object"]`} {
		err := translateAPIError(500, []byte(body), "/p")
		var rawErr *RawAPIError
		if !errors.As(err, &rawErr) {
			t.Fatalf("body %q: expected *RawAPIError, got %T", body, err)
		}
		if rawErr.StatusCode != 500 || rawErr.Body != body {
			t.Fatalf("body %q: raw error mangled: %+v", body, rawErr)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			t.Fatalf("body %q: must not translate to structured", body)
		}
	}
}
