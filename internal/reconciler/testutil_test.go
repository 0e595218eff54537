package reconciler

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

// =============================================================================
// Fake RecordStore
// =============================================================================

// call is one mutation sent to the fake store.
type call struct {
	Op    string
	Name  string
	Type  string
	Value string
}

// fakeStore implements RecordStore for testing.
// It applies successful mutations to its own record list and tracks every
// call for verification.
type fakeStore struct {
	mu        sync.Mutex
	records   []dreamhost.Record
	calls     []call
	listCalls int
	listErr   error
	addErr    map[string]error
	removeErr map[string]error
}

func newFakeStore(records ...dreamhost.Record) *fakeStore {
	return &fakeStore{
		records:   records,
		addErr:    make(map[string]error),
		removeErr: make(map[string]error),
	}
}

func (f *fakeStore) ListRecords(_ context.Context) ([]dreamhost.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := make([]dreamhost.Record, len(f.records))
	copy(result, f.records)
	return result, nil
}

func (f *fakeStore) AddRecord(_ context.Context, name, recordType, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Op: "add", Name: name, Type: recordType, Value: value})
	if err := f.addErr[name]; err != nil {
		return err
	}
	f.records = append(f.records, dreamhost.Record{Record: name, Type: recordType, Value: value})
	return nil
}

func (f *fakeStore) RemoveRecord(_ context.Context, name, recordType, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Op: "remove", Name: name, Type: recordType, Value: value})
	if err := f.removeErr[name]; err != nil {
		return err
	}
	kept := make([]dreamhost.Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.Record != name || rec.Type != recordType || rec.Value != value {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

// Calls returns a copy of the mutation calls received so far.
func (f *fakeStore) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]call, len(f.calls))
	copy(result, f.calls)
	return result
}

// ResetCalls forgets recorded calls but keeps the records.
func (f *fakeStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// =============================================================================
// Fake AddressResolver
// =============================================================================

type fakeResolver struct {
	mu      sync.Mutex
	address string
	err     error
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.address, nil
}

func (f *fakeResolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// =============================================================================
// Fake Recorder
// =============================================================================

type fakeRecorder struct {
	saved []*Result
	err   error
}

func (f *fakeRecorder) Save(_ context.Context, result *Result) error {
	f.saved = append(f.saved, result)
	return f.err
}

// =============================================================================
// Helpers
// =============================================================================

func liveRecord(name, recordType, value string) dreamhost.Record {
	return dreamhost.Record{Record: name, Type: recordType, Value: value, Zone: "example.com", Editable: "1"}
}

func exampleZone(records ...zone.Record) []zone.Zone {
	return []zone.Zone{{Name: "example.com", Records: records}}
}

// quietLogger returns a logger that discards all output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
