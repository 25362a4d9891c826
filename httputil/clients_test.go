package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"listing_detail/config"
)

func TestScrapingClientFollowsShortRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	clients := NewClients(&config.ProxyConfig{})
	resp, err := clients.Scraping.Get(srv.URL + "/old")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Request.URL.Path != "/new" {
		t.Fatalf("expected redirect to /new, got %d %s", resp.StatusCode, resp.Request.URL.Path)
	}
}

func TestScrapingClientStopsRedirectLoops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
	}))
	defer srv.Close()

	clients := NewClients(nil)
	if _, err := clients.Scraping.Get(srv.URL + "/loop"); err == nil {
		t.Fatal("expected redirect loop to fail")
	}
}
