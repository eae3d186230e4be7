package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	b := &model.Backup{
		Name:      "demo-1",
		Cluster:   "demo",
		Provider:  model.ProviderKind,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Workers:   2,
		Resources: []model.BackupResource{{Type: "services", Namespace: "default", Scope: model.ScopeNamespaced, File: "default_services.yaml", Objects: 1}},
	}
	files := map[string][]byte{"default_services.yaml": []byte("kind: Service\n")}
	if err := s.Save(ctx, b, files); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if b.SizeBytes == 0 || len(b.Files) != 1 {
		t.Errorf("Save() left %+v", b)
	}
	if err := s.Save(ctx, b, files); !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("second Save() error = %v", err)
	}

	got, data, err := s.Load(ctx, "demo-1", true)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Cluster != "demo" || got.Workers != 2 || len(got.Resources) != 1 || !got.CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("Load() = %+v", got)
	}
	if string(data["default_services.yaml"]) != "kind: Service\n" {
		t.Errorf("files = %v", data)
	}
	if _, data, _ := s.Load(ctx, "demo-1", false); data != nil {
		t.Error("files read without withFiles")
	}

	tmps, _ := filepath.Glob(filepath.Join(s.Dir(), ".backup-*"))
	if len(tmps) != 0 {
		t.Errorf("temp files left: %v", tmps)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "new"} {
		if err := s.Save(ctx, &model.Backup{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.zip"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("List() = %d backups", len(list))
	}
	var broken *model.Backup
	for _, b := range list {
		if b.Name == "broken" {
			broken = b
		}
	}
	if broken == nil || len(broken.Warnings) == 0 {
		t.Errorf("broken archive = %+v", broken)
	}
	if list[0].Name != "broken" || list[1].Name != "new" || list[2].Name != "old" {
		t.Errorf("order = %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}

	if err := s.Delete(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "old"); !errors.Is(err, model.ErrBackupNotFound) {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if _, _, err := s.Load(ctx, "old", false); !errors.Is(err, model.ErrBackupNotFound) {
		t.Errorf("Load(deleted) error = %v", err)
	}
	if _, _, err := s.Load(ctx, "../etc/passwd", false); !errors.Is(err, model.ErrBackupInvalid) {
		t.Errorf("Load(traversal) error = %v", err)
	}
}
