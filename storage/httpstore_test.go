package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHTTPStore(baseURL string) *httpStore {
	return &httpStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  "songbook-audio",
		token:   "service-token",
		apiKey:  "anon-key",
		client:  http.DefaultClient,
	}
}

func TestHTTPStorePut(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotAPIKey, gotUpsert, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestHTTPStore(srv.URL)
	payload := "raw audio bytes"
	err := store.Put(context.Background(), "audio/7/song.mp3", strings.NewReader(payload), int64(len(payload)), "audio/mpeg", nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/object/songbook-audio/audio/7/song.mp3" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer service-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("apikey = %q", gotAPIKey)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if gotType != "audio/mpeg" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if string(gotBody) != payload {
		t.Errorf("body = %q", gotBody)
	}
}

func TestHTTPStorePutRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"payload too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	store := newTestHTTPStore(srv.URL)
	err := store.Put(context.Background(), "audio/7/song.mp3", strings.NewReader("x"), 1, "audio/mpeg", nil)
	if err == nil {
		t.Fatal("Put succeeded on a 413 response")
	}
	if !strings.Contains(err.Error(), "413") || !strings.Contains(err.Error(), "payload too large") {
		t.Fatalf("error lacks status and body detail: %v", err)
	}
}

func TestHTTPStoreRemove(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestHTTPStore(srv.URL)
	if err := store.Remove(context.Background(), "audio/7/song.mp3"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
	if gotPath != "/object/songbook-audio/audio/7/song.mp3" {
		t.Errorf("path = %s", gotPath)
	}
}

func TestHTTPStorePublicURLIsPureTransform(t *testing.T) {
	// No server behind the URL; PublicURL must not dial it.
	store := newTestHTTPStore("https://store.example.com")
	want := "https://store.example.com/object/public/songbook-audio/audio/7/song.mp3"
	if got := store.PublicURL("audio/7/song.mp3"); got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
}

func TestHTTPStorePutReportsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestHTTPStore(srv.URL)
	payload := strings.Repeat("a", 4096)

	var final int64
	err := store.Put(context.Background(), "audio/1/a.mp3", strings.NewReader(payload), int64(len(payload)), "audio/mpeg",
		func(transferred, total int64) { final = transferred })
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if final != int64(len(payload)) {
		t.Fatalf("final transferred = %d, want %d", final, len(payload))
	}
}
