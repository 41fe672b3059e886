package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"frames": 7})
	}))
	defer srv.Close()

	var got struct {
		Frames int `json:"frames"`
	}
	if err := GetJSON(context.Background(), srv.URL+"/api/status", &got); err != nil {
		t.Fatal(err)
	}
	if got.Frames != 7 {
		t.Errorf("frames: got %d", got.Frames)
	}

	err := GetJSON(context.Background(), srv.URL+"/nope", &got)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Body != "not found" {
		t.Errorf("expected 404 StatusError, got %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	var method, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, contentType = r.Method, r.Header.Get("Content-Type")
		w.Write([]byte(`{"stopped":true}`))
	}))
	defer srv.Close()

	var reply struct {
		Stopped bool `json:"stopped"`
	}
	if err := PostJSON(context.Background(), srv.URL, nil, &reply); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || contentType != "" || !reply.Stopped {
		t.Errorf("method=%s content-type=%q reply=%+v", method, contentType, reply)
	}

	if err := PostJSON(context.Background(), srv.URL, map[string]int{"a": 1}, nil); err != nil {
		t.Fatal(err)
	}
	if contentType != "application/json" {
		t.Errorf("content-type: %q", contentType)
	}
}
