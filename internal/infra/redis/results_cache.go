package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultsCache keeps finalized results in Redis. Results of a SUBMITTED submission
// never change, so entries only expire to bound memory.
type ResultsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultsCache(client *redis.Client, ttl time.Duration) *ResultsCache {
	return &ResultsCache{client: client, ttl: ttl}
}

func (c *ResultsCache) GetResults(ctx context.Context, submissionID string) (domain.ResultsView, bool, error) {
	raw, err := c.client.Get(ctx, c.key(submissionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResultsView{}, false, nil
	}
	if err != nil {
		return domain.ResultsView{}, false, fmt.Errorf("get results: %w", err)
	}
	var view domain.ResultsView
	if err := json.Unmarshal(raw, &view); err != nil {
		// drop the corrupt entry; the aggregator rebuilds it
		_ = c.client.Del(ctx, c.key(submissionID)).Err()
		return domain.ResultsView{}, false, nil
	}
	return view, true, nil
}

func (c *ResultsCache) PutResults(ctx context.Context, view domain.ResultsView) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := c.client.Set(ctx, c.key(view.SubmissionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set results: %w", err)
	}
	return nil
}

func (c *ResultsCache) key(submissionID string) string {
	return "submission:results:" + submissionID
}
