// Package content fetches the words and checklist items a game is built from. Generation
// may fail in any way; Provider hides that behind a static fallback.
package content

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var ErrEmptyResult = errors.New("generator returned no items")

type Item struct {
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Points      int    `json:"points"`
}

type Generator interface {
	Words(ctx context.Context, topic string, count int) ([]string, error)
	Items(ctx context.Context, topic string, count int) ([]Item, error)
}

const DefaultTimeout = 8 * time.Second

type Provider struct {
	gen     Generator
	timeout time.Duration
	log     *zap.Logger
}

// NewProvider wraps gen; a nil gen always serves the fallback lists.
func NewProvider(gen Generator, timeout time.Duration, log *zap.Logger) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{gen: gen, timeout: timeout, log: log}
}

// Words returns exactly count words for topic. It never fails.
func (p *Provider) Words(ctx context.Context, topic string, count int) []string {
	if count <= 0 {
		return nil
	}
	if p.gen != nil {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		words, err := p.gen.Words(ctx, topic, count)
		if err == nil {
			words = normalizeWords(words)
			if len(words) == 0 {
				err = ErrEmptyResult
			}
		}
		if err == nil {
			if len(words) > count {
				words = words[:count]
			}
			if len(words) == count {
				return words
			}
			// Short answers are topped up from the fallback list.
			return append(words, fill(FallbackWords, count-len(words))...)
		}
		p.log.Warn("word generation failed, using fallback", zap.String("topic", topic), zap.Error(err))
	}
	return fill(FallbackWords, count)
}

// Items returns exactly count checklist items for topic. It never fails.
func (p *Provider) Items(ctx context.Context, topic string, count int) []Item {
	if count <= 0 {
		return nil
	}
	if p.gen != nil {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		items, err := p.gen.Items(ctx, topic, count)
		if err == nil && len(items) == 0 {
			err = ErrEmptyResult
		}
		if err == nil {
			if len(items) >= count {
				return items[:count]
			}
			return append(items, fill(FallbackItems, count-len(items))...)
		}
		p.log.Warn("item generation failed, using fallback", zap.String("topic", topic), zap.Error(err))
	}
	return fill(FallbackItems, count)
}

// fill sizes list to n, cycling when list is shorter.
func fill[T any](list []T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = list[i%len(list)]
	}
	return out
}
