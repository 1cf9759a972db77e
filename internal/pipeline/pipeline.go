package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"shelfward/internal/catalog"
	"shelfward/internal/config"
	"shelfward/internal/dedup"
	"shelfward/internal/fileutil"
	"shelfward/internal/library"
	"shelfward/internal/logging"
	"shelfward/internal/notifications"
	"shelfward/internal/pathing"
	"shelfward/internal/queue"
	"shelfward/internal/services"
	"shelfward/internal/services/content"
	"shelfward/internal/services/converter"
	"shelfward/internal/tags"
	"shelfward/internal/voucher"
)

// ciphertextExt is the staged encrypted download; convertedExt is the staged
// decrypted container before library placement.
const (
	ciphertextExt = ".aaxc"
	voucherExt    = ".voucher"
	convertedExt  = ".m4b"
)

// Request names one audiobook to acquire.
type Request struct {
	ID      string
	Title   string
	Quality string
	// Item carries pre-fetched catalog metadata; when nil the pipeline
	// fetches it from the content service.
	Item *catalog.Item
	// Cleanup removes the item's staging directory after placement.
	Cleanup bool
}

// Result reports where a finished audiobook lives. Skipped marks items that
// were already shelved (ledger hit or near-duplicate) without new work.
type Result struct {
	Path    string
	Skipped bool
}

// Pipeline wires the acquisition stages together. All collaborators are
// injected so tests can substitute fakes for the remote service and the
// conversion tool.
type Pipeline struct {
	cfg      *config.Config
	store    *queue.Store
	ledger   *library.Ledger
	detector *dedup.Detector
	content  content.Client
	convert  converter.Client
	tags     tags.Store
	notify   notifications.Service
	creds    *content.Credentials
	logger   *slog.Logger

	// convertGate serializes ffmpeg invocations; downloads overlap, but
	// only one conversion runs at a time.
	convertGate *semaphore.Weighted
}

// New assembles a pipeline from its collaborators.
func New(
	cfg *config.Config,
	store *queue.Store,
	ledger *library.Ledger,
	client content.Client,
	convert converter.Client,
	tagStore tags.Store,
	notify notifications.Service,
	creds *content.Credentials,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notify == nil {
		notify = notifications.NewService(cfg)
	}
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		detector:    dedup.NewDetector(ledger, logger),
		content:     client,
		convert:     convert,
		tags:        tagStore,
		notify:      notify,
		creds:       creds,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		convertGate: semaphore.NewWeighted(1),
	}
}

// Download acquires a single audiobook, retrying transient failures per the
// configured policy. Terminal failures are recorded on the queue item before
// the error is returned.
func (p *Pipeline) Download(ctx context.Context, req Request) (*Result, error) {
	if !catalog.ValidID(req.ID) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "download", fmt.Sprintf("invalid item id %q", req.ID), nil)
	}
	ctx = services.WithItemID(ctx, req.ID)
	log := logging.WithContext(ctx, p.logger)

	// Ledger pre-flight: an intact shelved file short-circuits the whole
	// pipeline; a stale entry is dropped so the item can be re-acquired.
	if entry, err := p.ledger.Get(req.ID); err == nil {
		if _, statErr := os.Stat(entry.Path); statErr == nil {
			log.Info("already shelved", logging.String("path", entry.Path))
			// A batch run enqueues before calling Download; settle any
			// queue entry so the batch still reaches completion.
			if err := p.finishItem(ctx, req.ID, entry.Path); err != nil && !errors.Is(err, queue.ErrNotFound) {
				return nil, err
			}
			return &Result{Path: entry.Path, Skipped: true}, nil
		}
		log.Warn("ledger entry points at a missing file, re-acquiring",
			logging.String("path", entry.Path))
		if err := p.ledger.Remove(req.ID); err != nil {
			return nil, services.Wrap(nil, "pipeline", "ledger", "remove stale entry", err)
		}
	}

	title := req.Title
	if title == "" {
		title = req.ID
	}
	work, err := p.store.Enqueue(ctx, req.ID, title, queue.Update{
		Account:     queue.StringPtr(p.creds.AccountName),
		MaxAttempts: queue.IntPtr(p.maxAttempts()),
	})
	if err != nil {
		return nil, services.Wrap(nil, "pipeline", "enqueue", "", err)
	}
	ctx = services.WithBatchID(ctx, work.BatchID)
	log = logging.WithContext(ctx, p.logger)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts(); attempt++ {
		if err := p.store.Upsert(ctx, req.ID, queue.Update{Attempt: queue.IntPtr(attempt)}); err != nil {
			return nil, services.Wrap(nil, "pipeline", "queue", "record attempt", err)
		}

		res, err := p.acquire(ctx, log, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !services.IsRetryable(err) || attempt == p.maxAttempts() {
			break
		}
		log.Warn("attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", p.cfg.RetryDelay()),
			logging.Error(err))
		p.recordFailure(ctx, req.ID, queue.StateRetrying, err)
		if err := sleepContext(ctx, p.cfg.RetryDelay()); err != nil {
			lastErr = services.Wrap(services.ErrTimeout, "pipeline", "retry", "", err)
			break
		}
	}

	log.Error("acquisition failed", logging.Error(lastErr))
	p.recordFailure(ctx, req.ID, queue.StateError, lastErr)
	return nil, lastErr
}

// acquire runs one end-to-end attempt.
func (p *Pipeline) acquire(ctx context.Context, log *slog.Logger, req Request) (*Result, error) {
	item := req.Item
	if item == nil {
		fetched, err := p.content.Product(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		item = fetched
		if item.Title != "" {
			if err := p.store.Upsert(ctx, req.ID, queue.Update{Title: queue.StringPtr(item.Title)}); err != nil {
				return nil, services.Wrap(nil, "pipeline", "queue", "record title", err)
			}
		}
	}

	if p.cfg.Dedup.Enabled {
		match, err := p.detector.Find(item.Title, pathing.FormatAuthors(item.Authors),
			p.cfg.PrimaryLibraryRoot(), p.cfg.Dedup.SimilarityThreshold)
		if err != nil {
			return nil, services.Wrap(nil, "pipeline", "dedup", "", err)
		}
		if match != nil {
			log.Info("near-duplicate already shelved, skipping",
				logging.String("existing_id", match.ID),
				logging.String("path", match.Path),
				logging.Float64("score", match.Score))
			if err := p.finishItem(ctx, req.ID, match.Path); err != nil {
				return nil, err
			}
			return &Result{Path: match.Path, Skipped: true}, nil
		}
	}

	lic, err := p.requestLicense(ctx, log, req)
	if err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(p.cfg.Paths.StagingDir, req.ID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, services.Wrap(nil, "download", "staging", "create staging dir", err)
	}

	ciphertext := filepath.Join(stagingDir, req.ID+ciphertextExt)
	if err := p.fetch(ctx, log, req.ID, lic.ContentURL, ciphertext); err != nil {
		return nil, err
	}

	vch, err := p.decryptVoucher(ctx, log, req.ID, stagingDir, lic.VoucherB64)
	if err != nil {
		return nil, err
	}

	converted := filepath.Join(stagingDir, req.ID+convertedExt)
	if err := p.convertCiphertext(ctx, log, req.ID, vch, ciphertext, converted); err != nil {
		return nil, err
	}

	final := pathing.Build(p.cfg.PrimaryLibraryRoot(), p.cfg.Library.NamingPattern, pathing.FieldsFromItem(item))
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, services.Wrap(nil, "library", "place", "create library dir", err)
	}
	if err := fileutil.MoveFile(converted, final); err != nil {
		return nil, services.Wrap(nil, "library", "place", fmt.Sprintf("move into %s", filepath.Dir(final)), err)
	}
	log.Info("shelved", logging.String("path", final))

	if err := p.tags.Write(final, tags.FromItem(item)); err != nil {
		// Tagging is best effort; the file is already in place.
		log.Warn("tag embed failed", logging.Error(err))
	}

	if err := p.ledger.Put(req.ID, item.Title, final, p.creds.AccountName); err != nil {
		return nil, services.Wrap(nil, "library", "ledger", "record entry", err)
	}
	if err := p.finishItem(ctx, req.ID, final); err != nil {
		return nil, err
	}

	if req.Cleanup {
		if err := os.RemoveAll(stagingDir); err != nil {
			log.Warn("staging cleanup failed", logging.Error(err))
		}
	}
	return &Result{Path: final}, nil
}

func (p *Pipeline) requestLicense(ctx context.Context, log *slog.Logger, req Request) (*content.License, error) {
	if err := p.store.SetState(ctx, req.ID, queue.StateLicenseRequested); err != nil {
		return nil, services.Wrap(nil, "license", "queue", "", err)
	}

	quality := p.resolveQuality(log, req.Quality)
	lic, err := p.content.RequestLicense(ctx, req.ID, quality)
	if err != nil {
		return nil, err
	}
	if !lic.Granted {
		msg := lic.Message
		if msg == "" {
			msg = "license denied"
		}
		return nil, services.Wrap(services.ErrValidation, "license", "request", msg, nil)
	}
	if lic.ContentURL == "" {
		return nil, services.Wrap(services.ErrValidation, "license", "request", "license carries no content url", nil)
	}

	if err := p.store.SetState(ctx, req.ID, queue.StateLicenseGranted); err != nil {
		return nil, services.Wrap(nil, "license", "queue", "", err)
	}
	log.Info("license granted", logging.String("quality", string(quality)))
	return lic, nil
}

func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger, id, url, dest string) error {
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		log.Info("reusing staged ciphertext", logging.Int64("bytes", fi.Size()))
	} else {
		if err := p.store.SetState(ctx, id, queue.StateDownloading); err != nil {
			return services.Wrap(nil, "download", "queue", "", err)
		}
		if err := p.content.Download(ctx, url, dest, p.progressFunc(ctx, log, id)); err != nil {
			return err
		}
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(nil, "download", "fetch", "stat downloaded file", err)
	}
	if fi.Size() == 0 {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrValidation, "download", "fetch", "downloaded file is empty", nil)
	}
	return p.store.SetState(ctx, id, queue.StateDownloadComplete)
}

func (p *Pipeline) decryptVoucher(ctx context.Context, log *slog.Logger, id, stagingDir, voucherB64 string) (*voucher.Voucher, error) {
	key, iv := voucher.Derive(p.creds.DeviceType, p.creds.DeviceSerial, p.creds.CustomerID, id)
	vch, err := voucher.Decrypt(voucherB64, key, iv)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "decrypt", "voucher", "", err)
	}

	// Persist the decrypted voucher beside the ciphertext so a later
	// re-run or manual conversion does not need another license.
	if data, err := json.MarshalIndent(vch, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Join(stagingDir, id+voucherExt), append(data, '\n'), 0o600); err != nil {
			log.Warn("voucher save failed", logging.Error(err))
		}
	}
	return vch, nil
}

func (p *Pipeline) convertCiphertext(ctx context.Context, log *slog.Logger, id string, vch *voucher.Voucher, ciphertext, converted string) error {
	if fi, err := os.Stat(converted); err == nil && fi.Size() > 0 {
		log.Info("reusing staged conversion", logging.Int64("bytes", fi.Size()))
		return nil
	}

	if err := p.store.SetState(ctx, id, queue.StateDecrypting); err != nil {
		return services.Wrap(nil, "convert", "queue", "", err)
	}
	if err := p.convertGate.Acquire(ctx, 1); err != nil {
		return services.Wrap(services.ErrTimeout, "convert", "gate", "", err)
	}
	defer p.convertGate.Release(1)

	return p.convert.Convert(ctx, vch.Key, vch.IV, ciphertext, converted)
}

// finishItem flips the queue record to converted and clears failure
// bookkeeping left over from earlier attempts.
func (p *Pipeline) finishItem(ctx context.Context, id, path string) error {
	err := p.store.Upsert(ctx, id, queue.Update{
		State:        queue.StatePtr(queue.StateConverted),
		FilePath:     queue.StringPtr(path),
		ErrorMessage: queue.StringPtr(""),
		ErrorKind:    queue.StringPtr(""),
	})
	if err != nil {
		return services.Wrap(nil, "pipeline", "queue", "mark converted", err)
	}
	return nil
}

func (p *Pipeline) recordFailure(ctx context.Context, id string, state queue.State, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := p.store.Upsert(ctx, id, queue.Update{
		State:        queue.StatePtr(state),
		ErrorMessage: queue.StringPtr(msg),
		ErrorKind:    queue.StringPtr(services.Classify(cause)),
	})
	if err != nil {
		p.logger.Warn("failure bookkeeping lost", logging.String(logging.FieldItemID, id), logging.Error(err))
	}
}

func (p *Pipeline) progressFunc(ctx context.Context, log *slog.Logger, id string) content.ProgressFunc {
	return func(downloaded, total int64, speed float64, etaSeconds int64) {
		if err := p.store.Progress(ctx, id, downloaded, total, speed, etaSeconds); err != nil {
			log.Warn("progress bookkeeping lost", logging.Error(err))
			return
		}
		pct := 0.0
		if total > 0 {
			pct = float64(downloaded) / float64(total) * 100
		}
		log.Info("downloading",
			logging.Float64("percent", pct),
			logging.Int64("downloaded", downloaded),
			logging.Int64("total", total),
			logging.Float64("speed", speed),
			logging.Int64("eta_seconds", etaSeconds))
	}
}

func (p *Pipeline) resolveQuality(log *slog.Logger, override string) catalog.Quality {
	label := override
	if label == "" {
		label = p.cfg.Content.Quality
	}
	quality, ok := catalog.ParseQuality(label)
	if !ok {
		log.Warn("unrecognized quality, using high", logging.String("quality", label))
	}
	return quality
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) maxAttempts() int {
	if p.cfg.Download.RetryAttempts < 1 {
		return 1
	}
	return p.cfg.Download.RetryAttempts
}
