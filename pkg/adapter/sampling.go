package adapter

import (
	"sync/atomic"

	"github.com/hyp3rd/hyperstream"
)

// logSampler keeps the first Initial entries of each level below warn, then one in Thereafter.
type logSampler struct {
	initial    uint64
	thereafter uint64
	counters   [hyperstream.FatalLevel + 1]atomic.Uint64
}

func newLogSampler(cfg hyperstream.SamplingConfig) *logSampler {
	if !cfg.Enabled {
		return nil
	}

	initial := cfg.Initial
	if initial <= 0 {
		initial = hyperstream.DefaultSamplingInitial
	}

	thereafter := cfg.Thereafter
	if thereafter <= 0 {
		thereafter = hyperstream.DefaultSamplingThereafter
	}

	return &logSampler{
		initial:    uint64(initial),
		thereafter: uint64(thereafter),
	}
}

// Allow reports whether an entry at level should be written. A nil sampler allows everything.
func (s *logSampler) Allow(level hyperstream.Level) bool {
	if s == nil || level >= hyperstream.WarnLevel {
		return true
	}

	count := s.counters[level].Add(1)
	if count <= s.initial || s.thereafter <= 1 {
		return true
	}

	return (count-s.initial)%s.thereafter == 0
}
