package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/kanban/internal/app"
	"github.com/hylla/kanban/internal/domain"
)

func TestOpenCreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "kanban.csv")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if repo.Path() != path {
		t.Fatalf("Path() = %q, want %q", repo.Path(), path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != "id,type,name,status,description,epic,start,duration" {
		t.Fatalf("unexpected file contents %q", got)
	}
	items, err := repo.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("LoadItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestServiceWritesAndReloadsCSV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kanban.csv")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	svc := app.NewService(repo, nil, app.ServiceConfig{})

	epic, err := domain.NewItem(domain.ItemInput{Kind: domain.KindEpic, Name: "Release", Description: "notes, with a comma"})
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	epic, err = svc.AddItem(ctx, epic)
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	duration := 15 * time.Minute
	sub, err := domain.NewItem(domain.ItemInput{Kind: domain.KindSubTask, Name: "Tag", Status: domain.StatusInProgress, StartTime: &start, Duration: &duration, EpicID: epic.ID})
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if _, err := svc.AddItem(ctx, sub); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 records, got %q", lines)
	}
	if lines[2] != "1,SUBTASK,Tag,IN_PROGRESS,,0,2026-03-02T10:00:00Z,15" {
		t.Fatalf("unexpected subtask record %q", lines[2])
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	restored := app.NewService(reloaded, nil, app.ServiceConfig{})
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := restored.PeekItem(ctx, epic.ID)
	if err != nil {
		t.Fatalf("PeekItem() error = %v", err)
	}
	if got.Description != "notes, with a comma" || got.Status != domain.StatusInProgress {
		t.Fatalf("unexpected restored epic %+v", got)
	}
	prioritized, _ := restored.Prioritized(ctx)
	if len(prioritized) != 1 || !prioritized[0].StartTime.Equal(start) {
		t.Fatalf("unexpected prioritized list %+v", prioritized)
	}
}

func TestLoadRejectsMalformedRecords(t *testing.T) {
	cases := map[string]string{
		"bad id":     "x,TASK,a,NEW,,,,\n",
		"bad kind":   "0,STORY,a,NEW,,,,\n",
		"bad status": "0,TASK,a,LATER,,,,\n",
		"bad start":  "0,TASK,a,NEW,,,yesterday,\n",
		"short":      "0,TASK,a\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kanban.csv")
			if err := os.WriteFile(path, []byte(strings.Join(header, ",")+"\n"+body), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			repo, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, err := repo.LoadItems(context.Background()); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
