// Command coupon-ingest bulk-imports coupon definitions from gzipped JSONL
// export files (one JSON object per line). Each record carries an external
// reference used for deduplication across files: a bloom filter prefilters
// refs already seen, so re-running an ingest over overlapping exports does
// not duplicate coupons. Records failing the variant schema are counted and
// skipped, never silently defaulted.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promokart/internal/domain/coupon"
	"github.com/xenking/promokart/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// record is one line of an export file.
type record struct {
	Ref            string          `json:"ref"`
	Type           string          `json:"type"`
	Details        json.RawMessage `json:"details"`
	IsActive       *bool           `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	MaxRedemptions int             `json:"max_redemptions"`
}

// stats aggregates counters across all ingest workers.
type stats struct {
	imported   atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Every run gets a batch id so imports can be correlated in logs.
	slog.SetDefault(slog.Default().With(slog.String("batch_id", uuid.New().String())))

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)

	// One bloom filter shared by all workers: TestOrAdd under a mutex keeps
	// the dedupe decision atomic per ref.
	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		st   stats
	)

	slog.Info("ingesting export files", slog.Int("files", len(files)))

	g, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			return ingestFile(gctx, repo, file, &st, func(ref string) bool {
				mu.Lock()
				defer mu.Unlock()
				return seen.TestOrAddString(ref)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int64("imported", st.imported.Load()),
		slog.Int64("duplicates", st.duplicates.Load()),
		slog.Int64("invalid", st.invalid.Load()),
	)
	return nil
}

// ingestFile streams one gzipped JSONL file, deduplicates by ref, validates
// each record's details against its coupon type, and inserts the survivors.
func ingestFile(ctx context.Context, repo coupon.Repository, path string, st *stats, seenRef func(string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var lines int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		lines++
		if lines%progressEvery == 0 {
			slog.Info("progress", slog.String("file", filepath.Base(path)), slog.Int64("lines", lines))
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			st.invalid.Add(1)
			continue
		}
		if rec.Ref == "" || seenRef(rec.Ref) {
			st.duplicates.Add(1)
			continue
		}

		det, err := coupon.DecodeDetails(coupon.Type(rec.Type), rec.Details)
		if err != nil {
			st.invalid.Add(1)
			continue
		}

		c := &coupon.Coupon{
			Type:           coupon.Type(rec.Type),
			Details:        det,
			Active:         rec.IsActive == nil || *rec.IsActive,
			ExpiresAt:      rec.ExpiresAt,
			MaxRedemptions: rec.MaxRedemptions,
		}
		if err := repo.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "insert coupon ref %q", rec.Ref)
		}
		st.imported.Add(1)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file done", slog.String("file", filepath.Base(path)), slog.Int64("lines", lines))
	return nil
}
