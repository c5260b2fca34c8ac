package readmarker

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-read-marker/internal/domain"
)

// ThreadSource returns every message of a thread, root included, in any order.
type ThreadSource interface {
	FetchThread(ctx context.Context, threadID string) ([]domain.Message, error)
}

// SnapshotFetcher orders a thread's replies by creation time. The root stays out
// of the snapshot because it is marked through its parent channel.
type SnapshotFetcher struct {
	source ThreadSource
}

func NewSnapshotFetcher(source ThreadSource) *SnapshotFetcher {
	return &SnapshotFetcher{source: source}
}

// Fetch always goes to the backend; replies change between events.
func (f *SnapshotFetcher) Fetch(ctx context.Context, threadID string) ([]domain.Message, error) {
	all, err := f.source.FetchThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", threadID, err)
	}
	replies := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if m.MessageID == threadID {
			continue
		}
		replies = append(replies, m)
	}
	sort.SliceStable(replies, func(i, j int) bool {
		if replies[i].CreateAt != replies[j].CreateAt {
			return replies[i].CreateAt < replies[j].CreateAt
		}
		return replies[i].MessageID < replies[j].MessageID
	})
	return replies, nil
}
