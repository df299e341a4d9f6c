package seafile

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/d/sharetok/files/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("p"); got != "/docs/a.txt" {
			t.Errorf("unexpected p param %q", got)
		}
		if got := r.URL.Query().Get("dl"); got != "1" {
			t.Errorf("unexpected dl param %q", got)
		}
		w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	data, err := client.FetchFile(context.Background(), "/docs/a.txt")
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	if !bytes.Equal(data, []byte("file contents")) {
		t.Errorf("got %q", data)
	}
}

func TestFetchFileMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if _, err := client.FetchFile(context.Background(), "/gone.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
