// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/notedesk/internal/listsync"
)

// RecordingMutator is a [listsync.Mutator] that records mutations and fails with Err when set.
type RecordingMutator struct {
	mu        sync.Mutex
	Err       error
	mutations []listsync.Mutation
}

func (m *RecordingMutator) Mutate(ctx context.Context, mut listsync.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, mut)
	if fail, ok := m.Err.(interface{ FailFor(string) bool }); ok && !fail.FailFor(mut.TargetID) {
		return nil
	}
	return m.Err
}

// Mutations returns the recorded mutations in order.
func (m *RecordingMutator) Mutations() []listsync.Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]listsync.Mutation(nil), m.mutations...)
}

// TargetError fails only for the listed target ids.
type TargetError struct {
	Err error
	IDs []string
}

func (e TargetError) Error() string          { return e.Err.Error() }
func (e TargetError) Unwrap() error          { return e.Err }
func (e TargetError) FailFor(id string) bool { return slices.Contains(e.IDs, id) }

// StaticFetcher serves pages of Items with the requested page size.
type StaticFetcher[T any] struct {
	mu    sync.Mutex
	Items []T
	Err   error
	calls []listsync.Request
}

func (f *StaticFetcher[T]) Fetch(ctx context.Context, req listsync.Request) (listsync.Page[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.Err != nil {
		return listsync.Page[T]{}, f.Err
	}

	size := max(req.PageSize, 1)
	start := min((max(req.Page, 1)-1)*size, len(f.Items))
	end := min(start+size, len(f.Items))
	return listsync.Page[T]{
		Items:      append([]T(nil), f.Items[start:end]...),
		TotalItems: len(f.Items),
		TotalPages: (len(f.Items) + size - 1) / size,
	}, nil
}

// Calls returns the requests served so far.
func (f *StaticFetcher[T]) Calls() []listsync.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listsync.Request(nil), f.calls...)
}

// WaitFor polls cond until it holds or two seconds pass.
func WaitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
