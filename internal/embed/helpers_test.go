package embed

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// scriptedEmbedder is a test double whose failures are chosen per call.
type scriptedEmbedder struct {
	dims int

	embedCalls atomic.Int64
	batchCalls atomic.Int64

	// failBatch, when set, decides the error for a whole EmbedBatch call.
	failBatch func(texts []string) error
	// failItem, when set, decides the error for a single Embed call.
	failItem func(text string) error
	// vector overrides the default vector for a text.
	vector func(text string) []float32
	// delay simulates provider latency.
	delay time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newScripted(dims int) *scriptedEmbedder {
	return &scriptedEmbedder{dims: dims}
}

func (s *scriptedEmbedder) vectorFor(text string) []float32 {
	if s.vector != nil {
		return s.vector(text)
	}
	v := make([]float32, s.dims)
	v[len(text)%s.dims] = 1
	return v
}

func (s *scriptedEmbedder) enter() func() {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}
}

func (s *scriptedEmbedder) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.embedCalls.Add(1)
	defer s.enter()()
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.failItem != nil {
		if err := s.failItem(text); err != nil {
			return nil, err
		}
	}
	return s.vectorFor(text), nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.batchCalls.Add(1)
	defer s.enter()()
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.failBatch != nil {
		if err := s.failBatch(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectorFor(text)
	}
	return out, nil
}

func (s *scriptedEmbedder) Dimensions() int                  { return s.dims }
func (s *scriptedEmbedder) ModelName() string                { return fmt.Sprintf("scripted-%d", s.dims) }
func (s *scriptedEmbedder) Available(_ context.Context) bool { return true }
func (s *scriptedEmbedder) Close() error                     { return nil }

func (s *scriptedEmbedder) peakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
