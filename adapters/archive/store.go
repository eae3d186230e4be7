// Package archive keeps cluster backups as zip files in a directory. Each
// archive holds a JSON manifest and the exported resource files.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

const (
	// ManifestName is the manifest entry of every archive.
	ManifestName = "backup.json"
	ext          = ".zip"
)

// Store is a model.BackupStore over a directory of zip files.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ model.BackupStore = (*Store)(nil)

// New creates dir when missing and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backup directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name+ext) }

// Save writes the archive through a temp file and rename. An existing
// backup of the same name is never replaced.
func (s *Store) Save(ctx context.Context, b *model.Backup, files map[string][]byte) error {
	if err := model.ValidateBackupName(b.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.path(b.Name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: backup %s", model.ErrAlreadyExists, b.Name)
	}

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	manifest := *b
	manifest.SizeBytes, manifest.Files = 0, nil
	data, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("create backup temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	zw := zip.NewWriter(tmp)
	if err := writeEntry(zw, ManifestName, data); err != nil {
		return fail(err)
	}
	for _, n := range names {
		if err := writeEntry(zw, n, files[n]); err != nil {
			return fail(err)
		}
	}
	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finish backup archive: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync backup archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close backup archive: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("store backup archive: %w", err)
	}
	if fi, err := os.Stat(dst); err == nil {
		b.SizeBytes = fi.Size()
	}
	b.Files = names
	logging.FromContext(ctx).Info(ctx, "backup stored", "backup", b.Name, "path", dst, "bytes", b.SizeBytes)
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Load reads the manifest of name and, with withFiles, every resource file.
func (s *Store) Load(_ context.Context, name string, withFiles bool) (*model.Backup, map[string][]byte, error) {
	if err := model.ValidateBackupName(name); err != nil {
		return nil, nil, err
	}
	zr, err := zip.OpenReader(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrBackupNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open backup %s: %w", name, err)
	}
	defer zr.Close()

	var b *model.Backup
	var files map[string][]byte
	var names []string
	for _, f := range zr.File {
		if f.Name == ManifestName {
			data, err := readEntry(f)
			if err != nil {
				return nil, nil, err
			}
			b = &model.Backup{}
			if err := json.Unmarshal(data, b); err != nil {
				return nil, nil, fmt.Errorf("decode manifest of %s: %w", name, err)
			}
			continue
		}
		names = append(names, f.Name)
		if withFiles {
			data, err := readEntry(f)
			if err != nil {
				return nil, nil, err
			}
			if files == nil {
				files = map[string][]byte{}
			}
			files[f.Name] = data
		}
	}
	if b == nil {
		return nil, nil, fmt.Errorf("%w: %s has no %s", model.ErrBackupInvalid, name, ManifestName)
	}
	b.Files = names
	if fi, err := os.Stat(s.path(name)); err == nil {
		b.SizeBytes = fi.Size()
	}
	return b, files, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// List returns every backup, newest first. Archives without a readable
// manifest are listed by file name with a warning.
func (s *Store) List(ctx context.Context) ([]*model.Backup, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}
	var out []*model.Backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		b, _, err := s.Load(ctx, name, false)
		if err != nil {
			b = &model.Backup{Name: name, Warnings: []string{"manifest unreadable: " + err.Error()}}
			if fi, ierr := e.Info(); ierr == nil {
				b.CreatedAt, b.SizeBytes = fi.ModTime(), fi.Size()
			}
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes the archive of name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := model.ValidateBackupName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", model.ErrBackupNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", name, err)
	}
	logging.FromContext(ctx).Info(ctx, "backup deleted", "backup", name)
	return nil
}
