package fs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
)

func TestStatsFileRepository_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo := NewStatsFileRepository(dir)
	ctx := context.Background()

	st, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty dir returned error: %v", err)
	}
	if st.ServiceStarts != 0 || st.TotalTags != 0 || st.LastScan != nil {
		t.Fatalf("expected zero stats, got %+v", st)
	}

	last := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	want := domain.Statistics{TotalTags: 7, ServiceStarts: 3, LastScan: &last}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TotalTags != 7 || got.ServiceStarts != 3 {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.LastScan == nil || !got.LastScan.Equal(last) {
		t.Errorf("LastScan = %v, want %v", got.LastScan, last)
	}
}

func TestStatsFileRepository_CorruptFile(t *testing.T) {
	repo := NewStatsFileRepository(t.TempDir())
	if err := os.WriteFile(repo.Path(), []byte("nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := repo.Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt stats file")
	}
}
