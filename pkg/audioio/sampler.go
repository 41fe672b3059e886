package audioio

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// AmplitudeSampler reduces each chunk from a Source to its peak amplitude.
// It implements proctor.SampleSource.
type AmplitudeSampler struct {
	src   Source
	once  sync.Once
	start error
}

// NewAmplitudeSampler wraps src. The source is started on first read.
func NewAmplitudeSampler(src Source) *AmplitudeSampler {
	return &AmplitudeSampler{src: src}
}

// NextSample reads one chunk and returns its peak.
func (a *AmplitudeSampler) NextSample(ctx context.Context) (proctor.AudioSample, error) {
	a.once.Do(func() { a.start = a.src.Start(ctx) })
	if a.start != nil {
		return proctor.AudioSample{}, a.start
	}

	chunk, err := a.src.Read(ctx)
	if err != nil {
		return proctor.AudioSample{}, err
	}
	return proctor.AudioSample{Timestamp: time.Now(), Amplitude: chunk.Peak()}, nil
}

// Close closes the underlying source.
func (a *AmplitudeSampler) Close() error {
	return a.src.Close()
}
