package statesync

import (
	"github.com/comalice/tilewall/internal/primitives"
	"go.uber.org/zap"
)

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithAuthorityLogger sets the authority's logger.
func WithAuthorityLogger(l *zap.Logger) AuthorityOption {
	return func(a *Authority) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock sets the clock used for liveness timestamps and reaping.
func WithClock(c primitives.Clock) MirrorOption {
	return func(m *Mirror) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the mirror's logger.
func WithLogger(l *zap.Logger) MirrorOption {
	return func(m *Mirror) {
		if l != nil {
			m.log = l
		}
	}
}

// WithReapPolicy overrides the staleness thresholds.
func WithReapPolicy(p ReapPolicy) MirrorOption {
	return func(m *Mirror) {
		m.policy = p
	}
}

// WithPriorCapacity bounds the per-channel prior-data buffer.
func WithPriorCapacity(n int) MirrorOption {
	return func(m *Mirror) {
		m.priorCap = n
	}
}

// WithEntryCapacity bounds the samples each defined entry keeps.
func WithEntryCapacity(n int) MirrorOption {
	return func(m *Mirror) {
		m.entryCap = n
	}
}

// WithRenderDelay sets how far behind now Entry.ValueAt reads, in ms.
func WithRenderDelay(ms float64) MirrorOption {
	return func(m *Mirror) {
		m.renderDelay = ms
	}
}

// WithReapHook is called, outside the mirror lock, with every reaped id.
func WithReapHook(fn func(id string)) MirrorOption {
	return func(m *Mirror) {
		m.onReap = fn
	}
}
