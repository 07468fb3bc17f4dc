package transcriber

import (
	"context"
	"iter"
	"sync"
	"time"
)

// FakeProvider replays scripted fragments, then Err if set.
type FakeProvider struct {
	Fragments []string
	Err       error
	Delay     time.Duration

	mu       sync.Mutex
	requests []Request
}

func NewFake(err error, fragments ...string) *FakeProvider {
	return &FakeProvider{Fragments: fragments, Err: err}
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		for _, frag := range f.Fragments {
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				}
			}
			if !yield(frag, nil) {
				return
			}
		}
		if f.Err != nil {
			yield("", f.Err)
		}
	}
}

// Requests returns every request received so far.
func (f *FakeProvider) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
