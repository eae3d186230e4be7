package cmenv

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix starts every configuration override variable.
const EnvPrefix = "CM_"

type override struct {
	key string
	set func(c *Config, v string) error
}

func str(f func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *f(c) = v; return nil }
}

func boolean(f func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func duration(f func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*f(c) = d
		return nil
	}
}

func integer(f func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

var overrides = []override{
	{"LEDGER_PATH", str(func(c *Config) *string { return &c.Ledger.Path })},
	{"LEDGER_LOCK", boolean(func(c *Config) *bool { return &c.Ledger.Lock })},
	{"CACHE_FAST_TTL", duration(func(c *Config) *time.Duration { return &c.Cache.FastTTL })},
	{"CACHE_FULL_TTL", duration(func(c *Config) *time.Duration { return &c.Cache.FullTTL })},
	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_REDIS_URL", str(func(c *Config) *string { return &c.Cache.RedisURL })},
	{"PROVIDERS_FALLBACK_TO_KIND", boolean(func(c *Config) *bool { return &c.Providers.FallbackToKind })},
	{"PROVIDERS_KIND_IMAGE", str(func(c *Config) *string { return &c.Providers.KindImage })},
	{"PROVIDERS_K3D_API_PORT", str(func(c *Config) *string { return &c.Providers.K3dAPIPort })},
	{"MONITORING_ENABLED", boolean(func(c *Config) *bool { return &c.Monitoring.Enabled })},
	{"MONITORING_WARMUP", duration(func(c *Config) *time.Duration { return &c.Monitoring.Warmup })},
	{"STORE_TYPE", str(func(c *Config) *string { return &c.Store.Type })},
	{"STORE_DB_URL", str(func(c *Config) *string { return &c.Store.DBURL })},
	{"STORE_DDB_TABLE", str(func(c *Config) *string { return &c.Store.DDBTable })},
	{"STORE_DDB_ACTIVITY_TABLE", str(func(c *Config) *string { return &c.Store.DDBActivityTable })},
	{"STORE_DDB_ENDPOINT", str(func(c *Config) *string { return &c.Store.DDBEndpoint })},
	{"STORE_DDB_REGION", str(func(c *Config) *string { return &c.Store.DDBRegion })},
	{"NOTIFY_TYPE", str(func(c *Config) *string { return &c.Notify.Type })},
	{"NOTIFY_TOPIC_ARN", str(func(c *Config) *string { return &c.Notify.TopicARN })},
	{"NOTIFY_ENDPOINT", str(func(c *Config) *string { return &c.Notify.Endpoint })},
	{"TERRAFORM_BIN", str(func(c *Config) *string { return &c.Terraform.Bin })},
	{"TERRAFORM_TEMPLATES_DIR", str(func(c *Config) *string { return &c.Terraform.TemplatesDir })},
	{"TERRAFORM_INFRA_DIR", str(func(c *Config) *string { return &c.Terraform.InfraDir })},
	{"BACKUP_DIR", str(func(c *Config) *string { return &c.Backup.Dir })},
	{"SERVER_ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"LOG_DIR", str(func(c *Config) *string { return &c.Logging.Dir })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_RETENTION_DAYS", integer(func(c *Config) *int { return &c.Logging.RetentionDays })},
}

// applyEnv applies CM_* overrides found through lookup.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, o := range overrides {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}
		if err := o.set(c, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.key, err)
		}
	}
	return nil
}
