// Package cache keeps finished answers in Redis so repeated questions skip
// the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "finqa:answer:"

type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewAnswerCache(client *redis.Client, ttl time.Duration, prefix string) *AnswerCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &AnswerCache{client: client, ttl: ttl, prefix: prefix}
}

// Get returns (nil, false, nil) on a miss.
func (c *AnswerCache) Get(ctx context.Context, key string) (*models.SynthesizedAnswer, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheError(err)
	}

	var answer models.SynthesizedAnswer
	if err := json.Unmarshal(val, &answer); err != nil {
		return nil, false, errors.NewCacheError(fmt.Errorf("decode cached answer: %w", err))
	}
	return &answer, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, key string, answer *models.SynthesizedAnswer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return errors.NewCacheError(fmt.Errorf("encode answer: %w", err))
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return errors.NewCacheError(err)
	}
	return nil
}

// Key hashes the normalized question together with sorted hints, so the same
// question asked with different casing or spacing shares an entry.
func Key(question string, hints *models.Hints) string {
	var b strings.Builder
	b.WriteString(strings.Join(strings.Fields(strings.ToLower(question)), " "))

	if !hints.Empty() {
		companies := append([]string{}, hints.Companies...)
		for i := range companies {
			companies[i] = strings.ToUpper(strings.TrimSpace(companies[i]))
		}
		sort.Strings(companies)

		years := append([]int{}, hints.Years...)
		sort.Ints(years)

		metrics := append([]string{}, hints.Metrics...)
		for i := range metrics {
			metrics[i] = strings.ToLower(strings.TrimSpace(metrics[i]))
		}
		sort.Strings(metrics)

		fmt.Fprintf(&b, "|c=%s|y=%v|m=%s", strings.Join(companies, ","), years, strings.Join(metrics, ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
