// Package portstest provides scripted collaborators for pipeline tests.
package portstest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
)

// LLM replies with Replies in order, repeating the last one. Fn, when set,
// takes precedence.
type LLM struct {
	Replies []string
	Err     error
	Fn      func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (l *LLM) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	n := len(l.prompts)
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()

	if l.Fn != nil {
		return l.Fn(prompt)
	}
	if l.Err != nil {
		return "", l.Err
	}
	if len(l.Replies) == 0 {
		return "", nil
	}
	if n >= len(l.Replies) {
		n = len(l.Replies) - 1
	}
	return l.Replies[n], nil
}

func (l *LLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}

func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

// Embedder hashes words into a small bag-of-words vector so that texts
// sharing words land close together.
type Embedder struct {
	Dims int
	// Fail maps a substring of the text to the error returned for it.
	Fail map[string]error

	mu    sync.Mutex
	texts []string
}

func (e *Embedder) Embed(ctx context.Context, text string, _ ports.EmbedMode) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()

	for needle, err := range e.Fail {
		if strings.Contains(text, needle) {
			return nil, err
		}
	}
	return HashVector(text, e.dims()), nil
}

func (e *Embedder) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func (e *Embedder) dims() int {
	if e.Dims <= 0 {
		return 32
	}
	return e.Dims
}

// HashVector is the embedding Embedder produces for text.
func HashVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!'\"()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// StoreCall records one Search invocation.
type StoreCall struct {
	Filter models.MetadataFilter
	TopK   int
}

// Store answers searches through Fn, or returns Passages filtered by the
// company and year in the filter.
type Store struct {
	Passages []models.Passage
	Err      error
	Fn       func(ctx context.Context, filter models.MetadataFilter, topK int) ([]models.Passage, error)

	mu    sync.Mutex
	calls []StoreCall
}

func (s *Store) Search(ctx context.Context, _ []float32, filter models.MetadataFilter, topK int) ([]models.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, StoreCall{Filter: filter, TopK: topK})
	s.mu.Unlock()

	if s.Fn != nil {
		return s.Fn(ctx, filter, topK)
	}
	if s.Err != nil {
		return nil, s.Err
	}

	var out []models.Passage
	for _, p := range s.Passages {
		if c, ok := filter.Company(); ok && p.Source.Company != c {
			continue
		}
		if y, ok := filter.Year(); ok && p.Source.Year != y {
			continue
		}
		out = append(out, p)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (s *Store) Calls() []StoreCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoreCall(nil), s.calls...)
}
