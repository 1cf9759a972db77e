// Package content is the boundary to the remote content service: license
// requests, catalog lookups, and streaming ciphertext downloads.
package content

import (
	"context"

	"shelfward/internal/catalog"
)

// ProgressFunc receives download progress: bytes so far, total from the
// response (0 when unknown), instantaneous speed in bytes/sec, and an ETA in
// seconds (-1 when unknown).
type ProgressFunc func(downloaded, total int64, speed float64, etaSeconds int64)

// License is the service's answer to a license request.
type License struct {
	Granted    bool
	Message    string
	ContentURL string
	VoucherB64 string
}

// Client is the remote content service surface the pipeline depends on.
type Client interface {
	RequestLicense(ctx context.Context, id string, quality catalog.Quality) (*License, error)
	Download(ctx context.Context, url, dest string, progress ProgressFunc) error
	Product(ctx context.Context, id string) (*catalog.Item, error)
}
