package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"listing_detail/models"
)

func TestWriteJSONKeepsMarkupAndTurkishText(t *testing.T) {
	desc := "<p>Deniz manzaralı & ferah</p>"
	recs := []*models.RawListing{{
		ListingURL:      "https://www.emlakjet.com/ilan/satilik-daire-14523890",
		ListingID:       "14523890",
		Info:            map[models.FieldName]string{models.FieldHeating: "Kombi (Doğalgaz)"},
		DescriptionHTML: &desc,
	}}

	path := filepath.Join(t.TempDir(), "out", "raw.json")
	if err := WriteJSON(path, recs); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, desc) {
		t.Errorf("markup was escaped:\n%s", text)
	}
	if !strings.Contains(text, "Doğalgaz") {
		t.Errorf("non-ASCII text was escaped:\n%s", text)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}

	back, err := ReadRawListings(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(back) != 1 || back[0].ListingID != "14523890" || *back[0].DescriptionHTML != desc {
		t.Fatalf("unexpected records %+v", back)
	}
}

func TestReadRawListingsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := ReadRawListings(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	got := ObjectKey("listings", "emlakjet", "output/listings_raw.json", at)
	want := "listings/emlakjet/20261018T093000Z/listings_raw.json"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if got := ObjectKey("", "emlakjet", "x.json", at); got != "emlakjet/20261018T093000Z/x.json" {
		t.Fatalf("unexpected key without prefix: %s", got)
	}
}
