// Package cmenv resolves the ClusterMaster project environment: the root and
// state directories, .clustermaster/config.yml, .env files and CM_*
// environment overrides.
package cmenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	RootEnvKey = "CLUSTERMASTER_ROOT"
	DirEnvKey  = "CLUSTERMASTER_DIR"
)

// Directory and file names
const (
	DirName        = ".clustermaster"
	ConfigFileName = "config.yml"
	EnvFileName    = ".env"
	LedgerFileName = "cluster_ports.json"
)

// Env holds the resolved directories and the effective configuration.
type Env struct {
	Root   string // project directory, or the home directory when no project was found
	Dir    string // state directory, typically $Root/.clustermaster
	Config Config
}

// Config mirrors .clustermaster/config.yml.
type Config struct {
	Version    int        `yaml:"version"`
	Ledger     Ledger     `yaml:"ledger"`
	Cache      Cache      `yaml:"cache"`
	Providers  Providers  `yaml:"providers"`
	Monitoring Monitoring `yaml:"monitoring"`
	Store      Store      `yaml:"store"`
	Notify     Notify     `yaml:"notify"`
	Terraform  Terraform  `yaml:"terraform"`
	Backup     Backup     `yaml:"backup"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Ledger struct {
	Path string `yaml:"path,omitempty"` // default: $CLUSTERMASTER_DIR/cluster_ports.json
	Lock bool   `yaml:"lock"`           // advisory flock around writes
}

type Cache struct {
	FastTTL  time.Duration `yaml:"fastTTL,omitempty" validate:"gte=0"`
	FullTTL  time.Duration `yaml:"fullTTL,omitempty" validate:"gte=0"`
	Backend  string        `yaml:"backend,omitempty" validate:"omitempty,oneof=memory redis none"`
	RedisURL string        `yaml:"redisURL,omitempty" validate:"required_if=Backend redis"`
}

type Providers struct {
	FallbackToKind bool   `yaml:"fallbackToKind"`
	KindImage      string `yaml:"kindImage,omitempty"`
	K3dAPIPort     string `yaml:"k3dAPIPort,omitempty"`
}

type Monitoring struct {
	Enabled bool          `yaml:"enabled"`
	Warmup  time.Duration `yaml:"warmup,omitempty"`
}

type Store struct {
	Type             string `yaml:"type,omitempty" validate:"omitempty,oneof=inmem rdb ddb"`
	DBURL            string `yaml:"dbURL,omitempty" validate:"required_if=Type rdb"`
	DDBTable         string `yaml:"ddbTable,omitempty" validate:"required_if=Type ddb"`
	DDBActivityTable string `yaml:"ddbActivityTable,omitempty"`
	DDBEndpoint      string `yaml:"ddbEndpoint,omitempty"`
	DDBRegion        string `yaml:"ddbRegion,omitempty"`
}

type Notify struct {
	Type     string `yaml:"type,omitempty" validate:"omitempty,oneof=log sns"`
	TopicARN string `yaml:"topicARN,omitempty" validate:"required_if=Type sns"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

type Terraform struct {
	Bin          string `yaml:"bin,omitempty"`
	TemplatesDir string `yaml:"templatesDir,omitempty"`
	InfraDir     string `yaml:"infraDir,omitempty"` // default: $CLUSTERMASTER_DIR/infra
}

type Backup struct {
	Dir string `yaml:"dir,omitempty"` // default: $CLUSTERMASTER_DIR/backups
}

type Server struct {
	Addr string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

type Logging struct {
	Dir           string `yaml:"dir,omitempty"`                                                  // default: $CLUSTERMASTER_DIR/logs
	Format        string `yaml:"format,omitempty" validate:"omitempty,oneof=human text json"`    // default: human
	Level         string `yaml:"level,omitempty" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"` // default: INFO
	RetentionDays int    `yaml:"retentionDays,omitempty" validate:"gte=0"`                       // default: 7
}

// Default returns the configuration used when config.yml is absent.
func Default() Config {
	return Config{
		Version:    1,
		Ledger:     Ledger{Lock: true},
		Cache:      Cache{FastTTL: 2 * time.Second, FullTTL: 3 * time.Second, Backend: "memory"},
		Monitoring: Monitoring{Enabled: true, Warmup: 30 * time.Second},
		Store:      Store{Type: "inmem"},
		Notify:     Notify{Type: "log"},
		Terraform:  Terraform{Bin: "terraform"},
		Server:     Server{Addr: "127.0.0.1:8000"},
		Logging:    Logging{Format: "human", Level: "INFO", RetentionDays: 7},
	}
}

// Resolve discovers the root and state directories, loads .env files and
// config.yml, applies CM_* overrides and validates the result.
//
// Resolution order for the root:
//  1. root parameter (from --root flag or CLUSTERMASTER_ROOT env)
//  2. Upward search from workDir for a parent containing .clustermaster/
//  3. The user home directory; its .clustermaster/ is created on demand
func Resolve(root, dir, workDir string) (*Env, error) {
	if root == "" {
		found, err := searchForRoot(workDir)
		if err != nil {
			return nil, fmt.Errorf("searching for %s directory: %w", DirName, err)
		}
		root = found
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%s not specified and no home directory: %w", RootEnvKey, err)
		}
		root = home
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s to absolute path: %w", RootEnvKey, err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%s %q does not exist: %w", RootEnvKey, root, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s %q is not a directory", RootEnvKey, root)
	}

	if dir == "" {
		dir = filepath.Join(root, DirName)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s to absolute path: %w", DirEnvKey, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s %q: %w", DirEnvKey, dir, err)
	}

	e := &Env{Root: root, Dir: dir, Config: Default()}
	if err := loadDotEnv(root, dir); err != nil {
		return nil, err
	}
	if err := e.loadConfigFile(); err != nil {
		return nil, err
	}
	if err := applyEnv(&e.Config, os.LookupEnv); err != nil {
		return nil, err
	}
	e.applyDefaults()
	if err := Validate(&e.Config); err != nil {
		return nil, err
	}
	return e, nil
}

// searchForRoot returns the nearest ancestor of startDir containing
// .clustermaster/, or "".
func searchForRoot(startDir string) (string, error) {
	if startDir == "" {
		return "", nil
	}
	current, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		info, err := os.Stat(filepath.Join(current, DirName))
		if err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// loadDotEnv loads $Root/.env then $Dir/.env. Variables already set in the
// process environment win.
func loadDotEnv(root, dir string) error {
	for _, p := range []string{filepath.Join(root, EnvFileName), filepath.Join(dir, EnvFileName)} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (e *Env) loadConfigFile() error {
	path := filepath.Join(e.Dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &e.Config); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

// applyDefaults fills directory-relative paths and expands variables.
func (e *Env) applyDefaults() {
	c := &e.Config
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(e.Dir, LedgerFileName)
	}
	if c.Terraform.InfraDir == "" {
		c.Terraform.InfraDir = filepath.Join(e.Dir, "infra")
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = filepath.Join(e.Dir, "logs")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(e.Dir, "backups")
	}
	for _, p := range []*string{&c.Ledger.Path, &c.Terraform.InfraDir, &c.Terraform.TemplatesDir, &c.Logging.Dir, &c.Backup.Dir, &c.Store.DBURL} {
		*p = e.ExpandVars(*p)
	}
}

// ExpandVars replaces $CLUSTERMASTER_ROOT and $CLUSTERMASTER_DIR in s.
func (e *Env) ExpandVars(s string) string {
	s = strings.ReplaceAll(s, "$"+DirEnvKey, e.Dir)
	s = strings.ReplaceAll(s, "$"+RootEnvKey, e.Root)
	return s
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c against its validate tags.
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// InitialConfigYAML renders the default configuration with 2-space indentation.
func InitialConfigYAML() ([]byte, error) {
	cfg := Default()
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing yaml encoder: %w", err)
	}
	return []byte(buf.String()), nil
}
