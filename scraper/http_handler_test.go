package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"listing_detail/config"
	"listing_detail/models"
)

func TestHTTPHandler_Open(t *testing.T) {
	body := loadFixture(t, "listing_detail.html")
	var lang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang = r.Header.Get("Accept-Language")
		if r.URL.Path != "/ilan/satilik-3-1-daire-14523890" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}))
	defer srv.Close()

	h := NewHTTPHandler(&config.SiteConfig{ID: "emlakjet"}, srv.Client())
	defer h.Close()

	listingURL := srv.URL + "/ilan/satilik-3-1-daire-14523890"
	page, err := h.Open(context.Background(), listingURL)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer page.Close()

	if lang == "" {
		t.Error("expected Accept-Language header")
	}

	rec, _, err := NewExtractor(nil).Extract(page, listingURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Info[models.FieldNetArea] != "120 m²" {
		t.Errorf("net area = %q", rec.Info[models.FieldNetArea])
	}

	if _, err := h.Open(context.Background(), srv.URL+"/ilan/yok-1"); err == nil {
		t.Error("expected error for 404")
	}
}
