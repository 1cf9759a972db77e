package content_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shelfward/internal/catalog"
	"shelfward/internal/logging"
	"shelfward/internal/services"
	"shelfward/internal/services/content"
)

func testCreds() *content.Credentials {
	return &content.Credentials{
		DeviceType:   "A2CZJZGLK2JJVM",
		DeviceSerial: "serial",
		CustomerID:   "customer",
		AccessToken:  "token",
	}
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	body := `{"device_type":"A2CZJZGLK2JJVM","device_serial":"s","customer_id":"c","access_token":"t"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := content.LoadCredentials(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.DeviceType != "A2CZJZGLK2JJVM" || creds.AccessToken != "t" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestLoadCredentialsMissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte(`{"device_type":"d"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := content.LoadCredentials(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestRequestLicenseGranted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/B004V9OF4G/licenserequest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("auth header = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["quality"] != "High" {
			t.Errorf("quality = %q", body["quality"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content_license": map[string]any{
				"status_code":      "Granted",
				"license_response": "dm91Y2hlcg==",
				"content_metadata": map[string]any{
					"content_url": map[string]any{"offline_url": "https://cdn.example/file.aax"},
				},
			},
		})
	}))
	defer server.Close()

	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())
	lic, err := client.RequestLicense(context.Background(), "B004V9OF4G", catalog.QualityHigh)
	if err != nil {
		t.Fatalf("request license: %v", err)
	}
	if !lic.Granted {
		t.Error("expected granted license")
	}
	if lic.ContentURL != "https://cdn.example/file.aax" || lic.VoucherB64 != "dm91Y2hlcg==" {
		t.Errorf("license = %+v", lic)
	}
}

func TestRequestLicenseDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content_license": map[string]any{
				"status_code": "Denied",
				"message":     "not in your library",
			},
		})
	}))
	defer server.Close()

	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())
	lic, err := client.RequestLicense(context.Background(), "B004V9OF4G", catalog.QualityNormal)
	if err != nil {
		t.Fatalf("request license: %v", err)
	}
	if lic.Granted {
		t.Error("expected denial")
	}
	if lic.Message != "not in your library" {
		t.Errorf("Message = %q", lic.Message)
	}
}

func TestRequestLicenseNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())
	_, err := client.RequestLicense(context.Background(), "B000000000", catalog.QualityHigh)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDownloadStreamsAndReportsProgress(t *testing.T) {
	payload := make([]byte, 64*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "65536")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "nested", "file.aax")
	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())

	var finalBytes, finalTotal int64
	err := client.Download(context.Background(), server.URL+"/file", dest, func(downloaded, total int64, speed float64, eta int64) {
		finalBytes, finalTotal = downloaded, total
	})
	if err != nil {
		t.Fatalf("download: %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 65536 {
		t.Errorf("file size = %d", info.Size())
	}
	if finalBytes != 65536 || finalTotal != 65536 {
		t.Errorf("final progress = %d/%d", finalBytes, finalTotal)
	}
}

func TestDownloadOutlivesRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		_, _ = w.Write([]byte("01234"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("56789"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.aax")
	// The request timeout must bound license and catalog calls only; a
	// ciphertext stream that takes longer still has to finish.
	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 50*time.Millisecond, logging.NewNop())

	if err := client.Download(context.Background(), server.URL+"/file", dest, nil); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0123456789" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadRemovesPartialOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.aax")
	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())

	err := client.Download(context.Background(), server.URL+"/file", dest, nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("partial file must not remain")
	}
}

func TestProductDecodesBothContributorShapes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"product": map[string]any{
				"asin":  "B004V9OF4G",
				"title": "Wizards First Rule",
				"authors": []map[string]string{
					{"name": "Terry Goodkind", "asin": "B000APIY5C"},
				},
				"narrators":      "Sam Tsoutsouvas",
				"series":         []map[string]string{{"title": "Sword of Truth", "sequence": "1"}},
				"publisher_name": "Brilliance Audio",
				"release_date":   "1994-08-15",
			},
		})
	}))
	defer server.Close()

	client := content.NewHTTPClient(server.URL, "test-agent", testCreds(), 5*time.Second, logging.NewNop())
	item, err := client.Product(context.Background(), "B004V9OF4G")
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if item.Title != "Wizards First Rule" {
		t.Errorf("Title = %q", item.Title)
	}
	authors := item.Authors.Records()
	if len(authors) != 1 || authors[0].ID != "B000APIY5C" {
		t.Errorf("authors = %+v", authors)
	}
	if item.Narrators.Display() != "Sam Tsoutsouvas" {
		t.Errorf("narrators = %q", item.Narrators.Display())
	}
	if len(item.Series) != 1 || item.Series[0].Sequence != "1" {
		t.Errorf("series = %+v", item.Series)
	}
	if item.ReleaseYear() != "1994" {
		t.Errorf("ReleaseYear = %q", item.ReleaseYear())
	}
}
