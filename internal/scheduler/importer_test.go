package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/store/memory"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

type countingImports struct {
	mu sync.Mutex
	n  int
}

func (c *countingImports) AddImported(n int) {
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
}

const archiveYAML = `version: 1
channels:
  SomeChannel:
    - id: "2001"
      title: Night
      timestamps:
        - at: "00:01:00"
          note: intro
        - at: "00:02:00"
`

func writeArchive(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func TestImporter_Import(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	writeArchive(t, path, archiveYAML)

	store := memory.NewStore()
	svc := timestamps.NewService(store, nil)
	rec := &countingImports{}
	im := NewImporter(path, svc, rec, logger.Nop(), time.Hour, make(chan struct{}, 1))

	res, err := im.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Inserted != 2 || res.Duplicates != 0 {
		t.Errorf("first Import() = %+v, want 2 inserted", res)
	}

	list, err := svc.List(context.Background(), timestamps.Key{Channel: "somechannel", VideoID: "2001"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Offset != 60 || list[0].Note != "intro" {
		t.Errorf("List() = %+v", list)
	}

	// re-importing the same file changes nothing
	res, err = im.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Inserted != 0 || res.Duplicates != 2 {
		t.Errorf("second Import() = %+v, want 2 duplicates", res)
	}
	if rec.n != 2 {
		t.Errorf("recorded imports = %d, want 2", rec.n)
	}
}

func TestImporter_ImportKeepsExistingNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	writeArchive(t, path, archiveYAML)

	svc := timestamps.NewService(memory.NewStore(), nil)
	key := timestamps.Key{Channel: "somechannel", VideoID: "2001"}
	if _, err := svc.Insert(context.Background(), key, "", 60, "mine"); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(path, svc, nil, logger.Nop(), time.Hour, nil)
	res, err := im.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Inserted != 1 || res.Duplicates != 1 {
		t.Errorf("Import() = %+v, want 1 inserted and 1 duplicate", res)
	}

	list, _ := svc.List(context.Background(), key)
	if list[0].Note != "mine" {
		t.Errorf("existing note overwritten: %q", list[0].Note)
	}
}

func TestImporter_ImportRejectsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	long := strings.Repeat("x", 600)
	writeArchive(t, path, "channels:\n  a:\n    - id: \"1\"\n      timestamps:\n        - at: \"5\"\n          note: "+long+"\n        - at: \"6\"\n")

	im := NewImporter(path, timestamps.NewService(memory.NewStore(), nil), nil, logger.Nop(), time.Hour, nil)
	res, err := im.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Inserted != 1 || res.Rejected != 1 {
		t.Errorf("Import() = %+v, want 1 inserted and 1 rejected", res)
	}
}

func TestImporter_ImportMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	writeArchive(t, path, "channels:\n  a:\n    - id: \"1\"\n      timestamps:\n        - at: \"1:99\"\n")

	im := NewImporter(path, timestamps.NewService(memory.NewStore(), nil), nil, logger.Nop(), time.Hour, nil)
	if _, err := im.Import(context.Background()); err == nil {
		t.Fatal("Import() should fail on a malformed offset")
	}
}

func TestImporter_StartWatchesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.yaml")

	svc := timestamps.NewService(memory.NewStore(), nil)
	im := NewImporter(path, svc, nil, logger.Nop(), time.Hour, make(chan struct{}, 1))
	im.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a missing file is not fatal
	if err := im.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer im.Stop()

	writeArchive(t, path, archiveYAML)

	key := timestamps.Key{Channel: "somechannel", VideoID: "2001"}
	deadline := time.Now().Add(3 * time.Second)
	for {
		list, err := svc.List(ctx, key)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file change was never imported")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestImporter_StartFailsOnBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	writeArchive(t, path, "channels: [")

	im := NewImporter(path, timestamps.NewService(memory.NewStore(), nil), nil, logger.Nop(), time.Hour, nil)
	if err := im.Start(context.Background()); err == nil {
		im.Stop()
		t.Fatal("Start() should fail on an unparsable file")
	}
}

func TestImporter_ManualTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	writeArchive(t, path, archiveYAML)

	svc := timestamps.NewService(memory.NewStore(), nil)
	trigger := make(chan struct{}, 1)
	im := NewImporter(path, svc, nil, logger.Nop(), time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := im.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer im.Stop()

	if err := svc.DeleteChannel(ctx, "somechannel"); err != nil {
		t.Fatal(err)
	}
	if !Trigger(trigger) {
		t.Fatal("Trigger() should accept a send on an idle importer")
	}

	key := timestamps.Key{Channel: "somechannel", VideoID: "2001"}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if list, _ := svc.List(ctx, key); len(list) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("manual import never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
