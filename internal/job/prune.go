package job

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/storage"
)

type PruneOptions struct {
	Retention time.Duration
	Keep      int
	Prefix    string // only streams whose name starts with Prefix
	DryRun    bool
	Logger    *logger.Logger
}

// PruneManager deletes old record streams together with their manifests.
type PruneManager struct {
	storage storage.Storage
	options PruneOptions
}

func NewPruneManager(s storage.Storage, opts PruneOptions) *PruneManager {
	return &PruneManager{storage: s, options: opts}
}

// List returns the manifests in the sink, newest first. Unreadable
// manifests are skipped.
func List(ctx context.Context, s storage.Storage, prefix string) ([]*manifest.Manifest, error) {
	files, err := s.ListMetadata(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	var manifests []*manifest.Manifest
	for _, file := range files {
		if _, ok := manifest.NameOf(file); !ok {
			continue
		}
		data, err := s.GetMetadata(ctx, file)
		if err != nil {
			continue
		}
		man, err := manifest.Deserialize(data)
		if err != nil {
			continue
		}
		manifests = append(manifests, man)
	}
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})
	return manifests, nil
}

// Prune returns the names it removed.
func (m *PruneManager) Prune(ctx context.Context) ([]string, error) {
	if m.options.Retention == 0 && m.options.Keep == 0 {
		return nil, nil
	}
	log := m.options.Logger
	if log == nil {
		log = logger.Discard()
	}

	manifests, err := List(ctx, m.storage, m.options.Prefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var pruned []string
	for i, man := range manifests {
		expired := m.options.Keep > 0 && i >= m.options.Keep
		if m.options.Retention > 0 && now.Sub(man.CreatedAt) > m.options.Retention {
			expired = m.options.Keep == 0 || i >= m.options.Keep
		}
		if !expired {
			continue
		}

		pruned = append(pruned, man.Name)
		if m.options.DryRun {
			log.Info("Would prune record stream", "name", man.Name)
			continue
		}
		log.Info("Pruning record stream", "name", man.Name)
		if err := m.storage.Delete(ctx, man.Records); err != nil {
			log.Warn("Failed to prune record stream", "error", err, "file", man.Records)
		}
		if err := m.storage.Delete(ctx, manifest.FileName(man.Name)); err != nil {
			log.Warn("Failed to prune manifest", "error", err, "name", man.Name)
		}
	}
	return pruned, nil
}
