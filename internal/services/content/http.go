package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shelfward/internal/catalog"
	"shelfward/internal/logging"
	"shelfward/internal/services"
)

// DefaultBaseURL is the production content service endpoint.
const DefaultBaseURL = "https://api.audible.com/1.0"

// HTTPClient implements Client over the content service's REST API.
type HTTPClient struct {
	baseURL   string
	userAgent string
	creds     *Credentials
	client    *http.Client
	stream    *http.Client
	logger    *slog.Logger
}

// NewHTTPClient builds a client for one account. baseURL may be empty to use
// the production endpoint. The timeout bounds license and catalog calls;
// ciphertext streams run far longer than any sane request timeout, so they
// go through a separate client limited only by context cancellation.
func NewHTTPClient(baseURL, userAgent string, creds *Credentials, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		creds:     creds,
		client:    &http.Client{Timeout: timeout},
		stream:    &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: timeout}},
		logger:    logging.NewComponentLogger(logger, "content"),
	}
}

type licenseRequestBody struct {
	ConsumptionType string `json:"consumption_type"`
	DRMType         string `json:"drm_type"`
	Quality         string `json:"quality"`
}

type licenseResponseBody struct {
	ContentLicense struct {
		StatusCode      string `json:"status_code"`
		Message         string `json:"message"`
		LicenseResponse string `json:"license_response"`
		ContentMetadata struct {
			ContentURL struct {
				OfflineURL string `json:"offline_url"`
			} `json:"content_url"`
		} `json:"content_metadata"`
	} `json:"content_license"`
}

// RequestLicense asks the service for a download license for one item.
func (c *HTTPClient) RequestLicense(ctx context.Context, id string, quality catalog.Quality) (*License, error) {
	body, err := json.Marshal(licenseRequestBody{
		ConsumptionType: "Download",
		DRMType:         "Adrm",
		Quality:         quality.String(),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "license", "encode request", id, err)
	}

	url := fmt.Sprintf("%s/content/%s/licenserequest", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "license", "build request", id, err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "license", "request", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "license", "request",
			fmt.Sprintf("%s: item unknown to the service", id), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "license", "request",
			fmt.Sprintf("%s: unexpected status %d", id, resp.StatusCode), nil)
	}

	var payload licenseResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "license", "decode response", id, err)
	}

	lic := &License{
		Granted:    strings.EqualFold(payload.ContentLicense.StatusCode, "Granted"),
		Message:    payload.ContentLicense.Message,
		ContentURL: payload.ContentLicense.ContentMetadata.ContentURL.OfflineURL,
		VoucherB64: payload.ContentLicense.LicenseResponse,
	}
	return lic, nil
}

// Download streams url into dest, reporting progress through a throttled
// callback. A partial file is removed on any error.
func (c *HTTPClient) Download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "build request", dest, err)
	}
	c.setHeaders(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "fetch", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "download", "fetch",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "download", "prepare destination", dest, err)
	}
	file, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "create file", dest, err)
	}

	writer := newProgressWriter(file, resp.ContentLength, progress)
	_, err = io.Copy(writer, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrTransient, "download", "stream", dest, err)
	}
	writer.finish()
	return nil
}

// Product fetches the catalog record for one item.
func (c *HTTPClient) Product(ctx context.Context, id string) (*catalog.Item, error) {
	url := fmt.Sprintf("%s/catalog/products/%s?response_groups=contributors,series,product_desc,product_attrs,product_extended_attrs",
		c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "build request", id, err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "request", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "request", id, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "catalog", "request",
			fmt.Sprintf("%s: unexpected status %d", id, resp.StatusCode), nil)
	}

	var payload struct {
		Product productPayload `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "decode response", id, err)
	}
	item := payload.Product.toItem()
	if item.ID == "" {
		item.ID = id
	}
	return item, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.creds != nil && c.creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	}
}

type productPayload struct {
	ASIN          string         `json:"asin"`
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle"`
	Authors       catalog.People `json:"authors"`
	Narrators     catalog.People `json:"narrators"`
	Series        []seriesRef    `json:"series"`
	PublisherName string         `json:"publisher_name"`
	ReleaseDate   string         `json:"release_date"`
	Language      string         `json:"language"`
	ISBN          string         `json:"isbn"`
	Summary       string         `json:"publisher_summary"`
}

type seriesRef struct {
	Title    string `json:"title"`
	Sequence string `json:"sequence"`
}

func (p productPayload) toItem() *catalog.Item {
	series := make([]catalog.SeriesRef, 0, len(p.Series))
	for _, ref := range p.Series {
		series = append(series, catalog.SeriesRef{Name: ref.Title, Sequence: ref.Sequence})
	}
	return &catalog.Item{
		ID:          p.ASIN,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Authors:     p.Authors,
		Narrators:   p.Narrators,
		Series:      series,
		Publisher:   p.PublisherName,
		ReleaseDate: p.ReleaseDate,
		Language:    p.Language,
		ISBN:        p.ISBN,
		Description: p.Summary,
	}
}
