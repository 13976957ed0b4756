// Package source provides streams of raw on-chain updates for the
// ingestion pipeline.
package source

import (
	"sonar/internal/domain"
)

// UpdateSource streams raw updates. The channel is closed when the
// source shuts down; consumers must tolerate both channel closure and
// arbitrarily malformed updates.
type UpdateSource interface {
	// Updates returns the stream of raw updates.
	Updates() <-chan *domain.RawUpdate
	// Close stops the stream and releases resources.
	Close() error
}

// StubSource replays a fixed set of updates and then closes its channel.
// Implements UpdateSource for tests and offline replay.
type StubSource struct {
	ch chan *domain.RawUpdate
}

// NewStubSource creates a stub source pre-loaded with the given updates.
func NewStubSource(updates ...*domain.RawUpdate) *StubSource {
	ch := make(chan *domain.RawUpdate, len(updates))
	for _, u := range updates {
		ch <- u
	}
	close(ch)
	return &StubSource{ch: ch}
}

// Updates returns the replay channel.
func (s *StubSource) Updates() <-chan *domain.RawUpdate { return s.ch }

// Close is a no-op; the channel is closed at construction.
func (s *StubSource) Close() error { return nil }

var _ UpdateSource = (*StubSource)(nil)
