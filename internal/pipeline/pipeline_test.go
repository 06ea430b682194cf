package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/extract"
)

func insert(code, dose string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<PackageInsert xmlns="` + doctree.Namespace + `">
<DetailBrandName id="BRD_1"><ApprovalBrandName><Lang xml:lang="ja">テスト錠</Lang></ApprovalBrandName><BrandCode><YJCode>` + code + `</YJCode></BrandCode></DetailBrandName>
<InfoDoseAdmin><DoseAdmin><Detail><Lang xml:lang="ja">` + dose + `</Lang></Detail></DoseAdmin></InfoDoseAdmin>
</PackageInsert>`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(sink Sink) *Worker {
	engine := extract.NewEngine(quietLogger(), extract.Options{}, extract.Hooks{})
	return NewWorker(engine, sink, NewLatencyStats(time.Hour), quietLogger())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// memSink is an in-memory Sink.
type memSink struct {
	mu    sync.Mutex
	saved map[string][]extract.Medicine
	fail  error
}

func newMemSink() *memSink { return &memSink{saved: make(map[string][]extract.Medicine)} }

func (s *memSink) HasDocument(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[hash]
	return ok, nil
}

func (s *memSink) SaveDocument(_ context.Context, hash, _ string, meds []extract.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saved[hash] = meds
	return nil
}

func TestDiscovery_IncludeIgnoreAndDedup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.xml", insert("111", "1日1回"))
	writeFile(t, dir, "sub/b.sgml", insert("222", "1日2回"))
	writeFile(t, dir, "sub/copy.xml", insert("111", "1日1回"))
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "tmp/c.xml", insert("333", "1日3回"))

	d, err := NewDiscovery(dir, nil, []string{"tmp/**"})
	require.NoError(t, err)

	inputs, dups, err := d.Discover()
	require.NoError(t, err)
	assert.Equal(t, 1, dups)

	var names []string
	for _, in := range inputs {
		names = append(names, in.Name)
		assert.Len(t, in.ContentHash, 64)
	}
	assert.Equal(t, []string{"a.xml", "sub/b.sgml"}, names)
}

func TestDiscovery_Matches(t *testing.T) {
	d, err := NewDiscovery("/data", []string{"**/*.xml"}, []string{"archive"})
	require.NoError(t, err)
	assert.True(t, d.Matches("top.xml"))
	assert.True(t, d.Matches("deep/dir/x.xml"))
	assert.False(t, d.Matches("x.sgml"))
	assert.False(t, d.Matches("archive"))
}

func TestDiscovery_BadPattern(t *testing.T) {
	_, err := NewDiscovery(".", []string{"[unclosed"}, nil)
	assert.Error(t, err)
	assert.Error(t, ValidatePatterns([]string{"[unclosed"}))
	assert.NoError(t, ValidatePatterns(DefaultInclude))
}

func TestWorker_ProcessAndSkipStored(t *testing.T) {
	sink := newMemSink()
	w := newTestWorker(sink)

	in := Input{Name: "a.xml", Data: []byte(insert("111", "1日1回経口投与する。"))}
	res := w.Process(context.Background(), in)
	require.NoError(t, res.Err)
	require.Len(t, res.Medicines, 1)
	assert.Equal(t, "111", res.Medicines[0].ProductCode)
	assert.Equal(t, []string{"1日1回経口投与する。"}, res.Medicines[0].ClinicalInfo.Dosage)
	assert.Len(t, sink.saved, 1)

	again := w.Process(context.Background(), in)
	assert.True(t, again.Skipped)
	assert.Empty(t, again.Medicines)
	assert.Equal(t, 1, w.stats.Snapshot().Count)
}

func TestWorker_BadDocumentFails(t *testing.T) {
	w := newTestWorker(nil)
	res := w.Process(context.Background(), Input{Name: "bad.xml", Data: []byte("<PackageInsert")})
	assert.True(t, res.Failed())
	assert.Empty(t, res.Medicines)

	res = w.Process(context.Background(), Input{Name: "missing.xml", Path: filepath.Join(t.TempDir(), "missing.xml")})
	assert.True(t, res.Failed())
}

func TestWorker_StoreErrorReported(t *testing.T) {
	sink := newMemSink()
	sink.fail = errors.New("disk full")
	res := newTestWorker(sink).Process(context.Background(), Input{Name: "a.xml", Data: []byte(insert("1", "x"))})
	assert.ErrorContains(t, res.Err, "disk full")
	assert.Len(t, res.Medicines, 1)
}

func TestOrchestrator_RunKeepsOrderAndSummarizes(t *testing.T) {
	o := NewOrchestrator(Config{WorkerCount: 3}, newTestWorker(nil), quietLogger())
	inputs := []Input{
		{Name: "1.xml", Data: []byte(insert("1", "1日1回"))},
		{Name: "2.xml", Data: []byte("not xml")},
		{Name: "3.xml", Data: []byte(insert("3", "1日3回"))},
		{Name: "4.xml", Data: []byte(insert("4", "1日4回"))},
	}

	var seen int
	results, err := o.Run(context.Background(), inputs, func(Result) { seen++ })
	require.NoError(t, err)
	assert.Equal(t, 4, seen)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, inputs[i].Name, r.Name)
	}

	s := Summarize(results, 2, time.Second)
	assert.Equal(t, 4, s.Files)
	assert.Equal(t, 2, s.Duplicates)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Medicines)
	assert.Equal(t, 3, s.Records[extract.Dosage])
}

func TestOrchestrator_RunCancelled(t *testing.T) {
	o := NewOrchestrator(Config{WorkerCount: 1}, newTestWorker(nil), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := o.Run(ctx, []Input{
		{Name: "a.xml", Data: []byte(insert("1", "x"))},
		{Name: "b.xml", Data: []byte(insert("2", "y"))},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEmpty(t, r.Name)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	s := Summarize(results, 0, 0)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 2, s.Failed)
	assert.Zero(t, s.Medicines)
}

func TestOrchestrator_SubmitJob(t *testing.T) {
	o := NewOrchestrator(Config{WorkerCount: 2, MaxQueueSize: 4}, newTestWorker(nil), quietLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob([]Input{
		{Name: "a.xml", Data: []byte(insert("1", "1日1回"))},
		{Name: "b.xml", Data: []byte(insert("2", "1日2回"))},
	})
	require.NoError(t, o.Submit(job))
	assert.Same(t, job, o.GetJob(job.ID))

	require.Eventually(t, func() bool {
		return o.GetJob(job.ID).Snapshot().Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	snap := job.Snapshot()
	assert.Equal(t, 2, snap.Progress.FilesProcessed)
	assert.Equal(t, 2, snap.Progress.Medicines)
	summary, ok := job.Summary()
	require.True(t, ok)
	assert.Equal(t, 2, summary.Medicines)
}

func TestOrchestrator_SubmitQueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(Config{MaxQueueSize: 1}, newTestWorker(nil), quietLogger())
	require.NoError(t, o.Submit(NewJob(nil)))

	job := NewJob(nil)
	err := o.Submit(job)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(Config{WorkerCount: 1, MaxQueueSize: 2}, newTestWorker(nil), quietLogger())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob([]Input{{Name: "a.xml", Data: []byte(insert("1", "x"))}})
	var err error
	require.NotPanics(t, func() { err = o.Submit(job) })
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Nil(t, o.GetJob(job.ID))
}

func TestWatcher_ProcessesNewFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiscovery(dir, nil, nil)
	require.NoError(t, err)

	sink := newMemSink()
	worker := newTestWorker(sink)
	done := make(chan Result, 4)
	worker.OnResult = func(r Result) { done <- r }

	w, err := NewWatcher(d, worker, quietLogger())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	w.Start(context.Background())
	defer w.Stop()

	writeFile(t, dir, "ignored.txt", "nothing")
	writeFile(t, dir, "new.xml", insert("999", "1日1回"))

	select {
	case r := <-done:
		assert.Equal(t, "new.xml", r.Name)
		require.NoError(t, r.Err)
		assert.Equal(t, "999", r.Medicines[0].ProductCode)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not process the new file")
	}
}
