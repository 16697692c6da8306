package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
)

const sampleCatalog = `
[objects.RFID1]
name = "Drill"
serial = 42

[objects.SHARED]
name = "Shared as object"

[locations.OP1]
name = "Bay 1"

[locations.SHARED]
name = "Shared as location"
`

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "catalog.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustLoad(t *testing.T, path string) *Catalog {
	t.Helper()
	c, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", path, err)
	}
	return c
}

func mustResolve(t *testing.T, c *Catalog, id string) domain.ScannedItem {
	t.Helper()
	item, err := c.Resolve(id)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", id, err)
	}
	return item
}

func TestLoad_Resolve(t *testing.T) {
	c := mustLoad(t, writeCatalog(t, t.TempDir(), sampleCatalog))

	obj := mustResolve(t, c, "RFID1")
	if obj.Type != domain.Object || obj.Name() != "Drill" {
		t.Errorf("RFID1 = %v %q, want object Drill", obj.Type, obj.Name())
	}
	if got := obj.Data()["serial"]; got != int64(42) {
		t.Errorf("serial = %#v, want int64(42)", got)
	}

	loc := mustResolve(t, c, "OP1")
	if loc.Type != domain.Location || loc.Name() != "Bay 1" {
		t.Errorf("OP1 = %v %q, want location Bay 1", loc.Type, loc.Name())
	}

	if _, err := c.Resolve("NOPE"); !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("Resolve(NOPE) error = %v, want ErrUnknownItem", err)
	}

	if objects, locations := c.Counts(); objects != 2 || locations != 2 {
		t.Errorf("Counts() = %d, %d, want 2, 2", objects, locations)
	}
}

func TestResolve_ObjectWinsTie(t *testing.T) {
	c := mustLoad(t, writeCatalog(t, t.TempDir(), sampleCatalog))

	item := mustResolve(t, c, "SHARED")
	if item.Type != domain.Object || item.Name() != "Shared as object" {
		t.Errorf("SHARED = %v %q, want the object entry", item.Type, item.Name())
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	c := mustLoad(t, filepath.Join(t.TempDir(), "absent.toml"))

	if objects, locations := c.Counts(); objects != 0 || locations != 0 {
		t.Errorf("Counts() = %d, %d, want empty", objects, locations)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "[objects.RFID1\nname=")
	if _, err := Load(path, nil); err == nil {
		t.Error("Load() of invalid TOML succeeded")
	}
}

func TestReload_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	c := mustLoad(t, writeCatalog(t, dir, sampleCatalog))

	writeCatalog(t, dir, "not = [valid")
	if err := c.Reload(); err == nil {
		t.Fatal("Reload() of invalid TOML succeeded")
	}

	if _, err := c.Resolve("RFID1"); err != nil {
		t.Errorf("previous catalog lost after failed reload: %v", err)
	}
}

func TestAddRemoveSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "catalog.toml")
	c := New(path, nil)

	if err := c.Add("RFID9", domain.Object, map[string]any{"name": "Saw"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("OP9", domain.Location, map[string]any{"name": "Bay 9"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded := mustLoad(t, path)
	if item := mustResolve(t, reloaded, "RFID9"); item.Name() != "Saw" {
		t.Errorf("RFID9 name = %q, want Saw", item.Name())
	}

	removed, err := reloaded.Remove("RFID9", domain.Object)
	if err != nil || !removed {
		t.Errorf("first Remove() = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = reloaded.Remove("RFID9", domain.Object)
	if err != nil || removed {
		t.Errorf("second Remove() = (%v, %v), want (false, nil)", removed, err)
	}

	if got := reloaded.IDs(domain.Location); !reflect.DeepEqual(got, []string{"OP9"}) {
		t.Errorf("location ids = %v, want [OP9]", got)
	}
	if got := reloaded.IDs(domain.Object); len(got) != 0 {
		t.Errorf("object ids = %v, want none", got)
	}
}

func TestAdd_InvalidType(t *testing.T) {
	c := New("unused.toml", nil)
	if err := c.Add("X", domain.ItemType(9), nil); !errors.Is(err, domain.ErrInvalidItemType) {
		t.Errorf("Add() error = %v, want ErrInvalidItemType", err)
	}
}

func TestItems_DeepCopy(t *testing.T) {
	c := New("unused.toml", nil)
	err := c.Add("RFID1", domain.Object, map[string]any{
		"name": "Drill",
		"meta": map[string]any{"owner": "ops"},
	})
	if err != nil {
		t.Fatal(err)
	}

	items, err := c.Items(domain.Object)
	if err != nil {
		t.Fatal(err)
	}
	items["RFID1"]["name"] = "changed"
	items["RFID1"]["meta"].(map[string]any)["owner"] = "changed"

	again, err := c.Items(domain.Object)
	if err != nil {
		t.Fatal(err)
	}
	if got := again["RFID1"]["name"]; got != "Drill" {
		t.Errorf("name = %v, want Drill", got)
	}
	if got := again["RFID1"]["meta"].(map[string]any)["owner"]; got != "ops" {
		t.Errorf("meta.owner = %v, want ops", got)
	}
}

func startWatcher(t *testing.T, c *Catalog) (reloads chan int, stop func() error) {
	t.Helper()
	reloads = make(chan int, 4)
	w := NewWatcher(c, nil,
		WithDebounce(10*time.Millisecond),
		WithReloadHook(func(objects, _ int) {
			select {
			case reloads <- objects:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return reloads, func() error {
		cancel()
		return <-done
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	c := mustLoad(t, writeCatalog(t, dir, sampleCatalog))

	reloads, stop := startWatcher(t, c)
	t.Cleanup(func() { _ = stop() })

	// Rewrite until the watcher has registered the directory and reloads.
	updated := sampleCatalog + "\n[objects.RFID2]\nname = \"Hammer\"\n"
	deadline := time.Now().Add(3 * time.Second)
	for reloaded := false; !reloaded; {
		if time.Now().After(deadline) {
			t.Fatal("catalog change was not picked up")
		}
		writeCatalog(t, dir, updated)
		select {
		case n := <-reloads:
			reloaded = n == 3
		case <-time.After(50 * time.Millisecond):
		}
	}

	if item := mustResolve(t, c, "RFID2"); item.Name() != "Hammer" {
		t.Errorf("RFID2 name = %q, want Hammer", item.Name())
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c := mustLoad(t, writeCatalog(t, dir, sampleCatalog))

	reloads, stop := startWatcher(t, c)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloads:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(150 * time.Millisecond):
	}

	if err := stop(); err != nil {
		t.Errorf("watcher Run() error = %v", err)
	}
}
