package cmenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range overrides {
		t.Setenv(EnvPrefix+o.key, "")
		os.Unsetenv(EnvPrefix + o.key)
	}
}

func TestResolve_RootSearch(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, DirName), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	env, err := Resolve("", "", sub)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if env.Root != root {
		t.Errorf("Root = %q, want %q", env.Root, root)
	}
	if want := filepath.Join(root, DirName); env.Dir != want {
		t.Errorf("Dir = %q, want %q", env.Dir, want)
	}
	if want := filepath.Join(root, DirName, LedgerFileName); env.Config.Ledger.Path != want {
		t.Errorf("Ledger.Path = %q, want %q", env.Config.Ledger.Path, want)
	}
	if want := filepath.Join(root, DirName, "backups"); env.Config.Backup.Dir != want {
		t.Errorf("Backup.Dir = %q, want %q", env.Config.Backup.Dir, want)
	}
	if env.Config.Cache.FastTTL != 2*time.Second || env.Config.Cache.FullTTL != 3*time.Second {
		t.Errorf("cache TTLs = %v/%v", env.Config.Cache.FastTTL, env.Config.Cache.FullTTL)
	}
}

func TestResolve_ConfigFileAndEnv(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	dir := filepath.Join(root, DirName)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := `version: 1
ledger:
  path: $CLUSTERMASTER_DIR/ports.json
cache:
  fastTTL: 5s
store:
  type: rdb
  dbURL: sqlite:$CLUSTERMASTER_DIR/cm.db
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, EnvFileName), []byte("CM_LOG_LEVEL=DEBUG\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CM_CACHE_FULL_TTL", "10s")

	env, err := Resolve(root, "", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	c := env.Config
	if c.Ledger.Path != filepath.Join(dir, "ports.json") {
		t.Errorf("Ledger.Path = %q", c.Ledger.Path)
	}
	if c.Cache.FastTTL != 5*time.Second || c.Cache.FullTTL != 10*time.Second {
		t.Errorf("cache TTLs = %v/%v", c.Cache.FastTTL, c.Cache.FullTTL)
	}
	if c.Store.DBURL != "sqlite:"+filepath.Join(dir, "cm.db") {
		t.Errorf("Store.DBURL = %q", c.Store.DBURL)
	}
	if c.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG from .env", c.Logging.Level)
	}
	if !c.Ledger.Lock {
		t.Error("Ledger.Lock default lost when config.yml omits it")
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		env  map[string]string
	}{
		{name: "bad yaml", cfg: "ledger: [\n"},
		{name: "unknown store", cfg: "store:\n  type: mongo\n"},
		{name: "rdb without url", cfg: "store:\n  type: rdb\n"},
		{name: "sns without topic", cfg: "notify:\n  type: sns\n"},
		{name: "redis without url", cfg: "cache:\n  backend: redis\n"},
		{name: "bad duration", env: map[string]string{"CM_CACHE_FAST_TTL": "soon"}},
		{name: "bad bool", env: map[string]string{"CM_LEDGER_LOCK": "maybe"}},
		{name: "bad format", env: map[string]string{"CM_LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			root := t.TempDir()
			dir := filepath.Join(root, DirName)
			if err := os.Mkdir(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if tt.cfg != "" {
				if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(tt.cfg), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Resolve(root, "", ""); err == nil {
				t.Fatal("Resolve() succeeded")
			}
		})
	}
}

func TestResolve_RootNotDirectory(t *testing.T) {
	clearEnv(t)
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(f, "", ""); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("Resolve(file) error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"CM_PROVIDERS_FALLBACK_TO_KIND": "true",
		"CM_MONITORING_WARMUP":          "1m",
		"CM_LOG_RETENTION_DAYS":         "3",
		"CM_STORE_TYPE":                 "ddb",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	if err := applyEnv(&c, lookup); err != nil {
		t.Fatal(err)
	}
	if !c.Providers.FallbackToKind || c.Monitoring.Warmup != time.Minute || c.Logging.RetentionDays != 3 || c.Store.Type != "ddb" {
		t.Errorf("applyEnv() = %+v", c)
	}
	if err := applyEnv(&c, func(k string) (string, bool) { return "x", k == "CM_LOG_RETENTION_DAYS" }); err == nil ||
		!strings.Contains(err.Error(), "CM_LOG_RETENTION_DAYS") {
		t.Errorf("applyEnv(bad int) error = %v", err)
	}
}

func TestInitialConfigYAML(t *testing.T) {
	data, err := InitialConfigYAML()
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{"version: 1", "fastTTL: 2s", "type: inmem", "backend: memory"} {
		if !strings.Contains(s, want) {
			t.Errorf("InitialConfigYAML() missing %q:\n%s", want, s)
		}
	}
}
