package reconcile

import (
	"bytes"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/jobs"
	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

// MaxClusters returns the largest region count among the descriptors of
// streams. Streams without a descriptor count as zero. Descriptors are read
// concurrently, at most one per CPU.
func MaxClusters(ctx context.Context, repo Repository, streams []Stream) (int, error) {
	var (
		mu   sync.Mutex
		most int
	)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(jobs.Slots(0))
	for _, s := range streams {
		s := s
		g.Go(func() error {
			data, err := repo.Descriptor(s)
			if pinpoints.IsOptionalMissing(err) {
				return nil
			}
			if err != nil {
				return err
			}
			n, err := regions.CountClusters(bytes.NewReader(data))
			if err != nil {
				return err
			}
			mu.Lock()
			if n > most {
				most = n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return most, nil
}

// ScanMaxClusters discovers the streams under the directories of root whose names
// start with prefix and returns their largest region count.
func ScanMaxClusters(ctx context.Context, root, prefix string) (int, error) {
	repo := &FileRepository{Root: root}
	streams, err := repo.Discover(prefix)
	if err != nil {
		return 0, err
	}
	return MaxClusters(ctx, repo, streams)
}
