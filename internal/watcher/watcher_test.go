package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func TestWatcher_RebuildAfterChange(t *testing.T) {
	dir := t.TempDir()
	var rebuilds int
	var mu sync.Mutex
	onRebuild := func() {
		mu.Lock()
		rebuilds++
		mu.Unlock()
	}

	w := New(dir, []string{".md"}, onRebuild, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "sop.md"), "SOP_ID: SOP-001"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	count := rebuilds
	mu.Unlock()
	if count < 1 {
		t.Errorf("expected at least one rebuild, got %d", count)
	}
}

func TestWatcher_BurstCollapsesToOneRebuild(t *testing.T) {
	dir := t.TempDir()
	var rebuilds int
	var mu sync.Mutex
	onRebuild := func() {
		mu.Lock()
		rebuilds++
		mu.Unlock()
	}

	w := New(dir, []string{".md"}, onRebuild, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := writeFile(filepath.Join(dir, "sop.md"), "revision"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)

	mu.Lock()
	count := rebuilds
	mu.Unlock()
	if count != 1 {
		t.Errorf("expected burst to collapse to 1 rebuild, got %d", count)
	}
}

func TestWatcher_IgnoresNonCorpusFiles(t *testing.T) {
	dir := t.TempDir()
	var rebuilds int
	var mu sync.Mutex
	onRebuild := func() {
		mu.Lock()
		rebuilds++
		mu.Unlock()
	}

	w := New(dir, []string{".md", ".txt"}, onRebuild, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.xyz"), "scratch"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	count := rebuilds
	mu.Unlock()
	if count != 0 {
		t.Errorf("non-corpus file triggered %d rebuilds", count)
	}
}

func TestMatchExtension(t *testing.T) {
	w := New("/tmp/corpus", []string{".md", "txt"}, nil)
	tests := []struct {
		path string
		want bool
	}{
		{"/tmp/corpus/a.md", true},
		{"/tmp/corpus/a.MD", true},
		{"/tmp/corpus/a.txt", true},
		{"/tmp/corpus/a.pdf", false},
		{"/tmp/corpus/a", false},
	}
	for _, tt := range tests {
		if got := w.matchExtension(tt.path); got != tt.want {
			t.Errorf("matchExtension(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	all := New("/tmp/corpus", nil, nil)
	if !all.matchExtension("/tmp/corpus/anything") {
		t.Error("empty extension list should match everything")
	}
}

func TestWatcher_StopCancelsPendingRebuild(t *testing.T) {
	dir := t.TempDir()
	var rebuilds int
	var mu sync.Mutex
	onRebuild := func() {
		mu.Lock()
		rebuilds++
		mu.Unlock()
	}

	w := New(dir, []string{".md"}, onRebuild, WithDebounce(300*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := writeFile(filepath.Join(dir, "sop.md"), "revision"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	count := rebuilds
	mu.Unlock()
	if count != 0 {
		t.Errorf("rebuild fired after Stop, count = %d", count)
	}
}
