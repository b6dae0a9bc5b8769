// Package seeder provisions bracelet batches. The factory runs it once per
// production run and receives a manifest pairing each bracelet ID with its
// one-time secret token, which is engraved into the tag URL and never
// readable again.
package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"guardtag/internal/bracelet/models"
	"guardtag/internal/bracelet/service"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

const defaultConcurrency = 8

// Provisioner mints a single bracelet.
type Provisioner interface {
	Provision(ctx context.Context, cmd service.ProvisionCommand) (*service.Provisioned, error)
}

// ManifestEntry is one minted bracelet. The token appears only here.
type ManifestEntry struct {
	BraceletID id.BraceletID `json:"bracelet_id"`
	Token      string        `json:"token"`
}

type Seeder struct {
	provisioner Provisioner
	logger      *slog.Logger
	concurrency int
}

type Option func(*Seeder)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Seeder) { s.logger = logger }
}

func WithConcurrency(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(provisioner Provisioner, opts ...Option) *Seeder {
	s := &Seeder{
		provisioner: provisioner,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedBatch mints count bracelets under one batch ID. IDs are sequential
// within the batch ("<batch>-0001" onward) so a physical run maps cleanly to
// its manifest. Each goroutine writes to its own manifest slot; on the first
// failure the remaining mints are cancelled and no manifest is returned.
func (s *Seeder) SeedBatch(ctx context.Context, batchID id.BatchID, count int) ([]ManifestEntry, error) {
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch ID cannot be empty")
	}
	if count <= 0 || count > 10000 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch size must be between 1 and 10000")
	}

	manifest := make([]ManifestEntry, count)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			braceletID := fmt.Sprintf("%s-%04d", batchID, i+1)
			minted, err := s.provisioner.Provision(ctx, service.ProvisionCommand{
				BraceletID: braceletID,
				Initial:    models.StatusFactoryLocked,
				BatchID:    batchID,
			})
			if err != nil {
				return fmt.Errorf("provision %s: %w", braceletID, err)
			}
			manifest[i] = ManifestEntry{
				BraceletID: minted.Bracelet.ID,
				Token:      minted.Token,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "batch seeded",
		slog.String("batch_id", batchID.String()),
		slog.Int("count", count),
	)
	return manifest, nil
}
