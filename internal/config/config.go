package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Environment variable names. Nested keys are addressed with a double
// underscore, e.g. MEDIA_PORTAL_storage__local_storage_path.
const (
	EnvPrefix      = "MEDIA_PORTAL_"
	envConfigFile  = EnvPrefix + "CONFIG_FILE"
	envEnvironment = EnvPrefix + "ENV"

	defaultEnvironment = "development"
)

// Storage backend identifiers for database.type.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

type ProjectConfig struct {
	Name    string
	Version string
}

type APIConfig struct {
	Host        string
	Port        int
	Debug       bool
	CORSOrigins []string
}

type FileServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Type       string
	SQLitePath string
	BoltPath   string
}

type StorageConfig struct {
	LocalStoragePath string
	GCSBucketName    string
	UseCloudStorage  bool
}

type LoggingConfig struct {
	Level string
	File  string
}

type RetryConfig struct {
	MaxAttempts   int
	Delay         time.Duration
	BackoffFactor float64
}

// Config is the immutable configuration snapshot. It is resolved once at
// process start and passed by reference into every component that needs it.
type Config struct {
	Environment string
	Project     ProjectConfig
	API         APIConfig
	FileServer  FileServerConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Logging     LoggingConfig
	TempDir     string
	Retry       RetryConfig
}

// Options controls resolution. The zero value reads from the process
// environment with the working directory as project root.
type Options struct {
	// ProjectRoot anchors relative paths and the <env>.json override file.
	ProjectRoot string
	// Lookup overrides single-variable reads; defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
	// Environ overrides the prefix scan; defaults to os.Environ.
	Environ func() []string
	// Strict surfaces malformed override layers as a ConfigurationError
	// instead of skipping them with a warning.
	Strict bool
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"project": map[string]interface{}{
			"name":    "Legislature Media Portal",
			"version": "1.0.0",
		},
		"api": map[string]interface{}{
			"host":         "0.0.0.0",
			"port":         5000,
			"debug":        false,
			"cors_origins": []interface{}{"*"},
		},
		"file_server": map[string]interface{}{
			"host": "0.0.0.0",
			"port": 5001,
		},
		"database": map[string]interface{}{
			"type":        BackendBolt,
			"sqlite_path": "data/db/media.db",
			"bolt_path":   "data/db/media.bolt",
		},
		"storage": map[string]interface{}{
			"local_storage_path": "data/downloads",
			"gcs_bucket_name":    "",
			"use_cloud_storage":  false,
		},
		"logging": map[string]interface{}{
			"level": "info",
			"file":  "data/logs/app.log",
		},
		"temp": map[string]interface{}{
			"dir": "data/temp",
		},
		"retry": map[string]interface{}{
			"max_attempts":   3,
			"delay_ms":       1000,
			"backoff_factor": 2.0,
		},
	}
}

// Resolve merges defaults, file overrides and environment overrides into one
// snapshot. Layers apply in increasing precedence: defaults, the file named by
// MEDIA_PORTAL_CONFIG_FILE, .env.<env>.json under the project root, then
// MEDIA_PORTAL_* variables. A layer either merges fully or is skipped.
func Resolve(opts Options) (*Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}

	// Optional .env preload so MEDIA_PORTAL_* vars can live in a dotfile.
	_ = godotenv.Load(filepath.Join(opts.ProjectRoot, ".env"))

	env := defaultEnvironment
	if v, ok := lookup(envEnvironment); ok && v != "" {
		env = strings.ToLower(v)
	}
	log.WithField("environment", env).Info("resolving configuration")

	tree := defaults()

	if path, ok := lookup(envConfigFile); ok && path != "" {
		merged, err := mergeFileLayer(tree, path)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			log.WithFields(log.Fields{"file": path, "error": err}).Warn("skipping malformed config file layer")
		} else {
			tree = merged
		}
	}

	envFile := filepath.Join(opts.ProjectRoot, ".env."+env+".json")
	if _, err := os.Stat(envFile); err == nil {
		merged, err := mergeFileLayer(tree, envFile)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			log.WithFields(log.Fields{"file": envFile, "error": err}).Warn("skipping malformed environment config layer")
		} else {
			tree = merged
		}
	}

	if overrides := envOverrides(environ()); len(overrides) > 0 {
		tree = deepMerge(tree, overrides)
	}

	if env == defaultEnvironment {
		tree = deepMerge(tree, map[string]interface{}{
			"api": map[string]interface{}{"debug": true},
		})
	}

	cfg := fromTree(tree, opts.ProjectRoot)
	cfg.Environment = env

	// Directory bootstrap is the resolver's only I/O; failures are logged
	// and resolution continues.
	ensureDirectories(cfg)

	return cfg, nil
}

func mergeFileLayer(tree map[string]interface{}, path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError("reading config file", err).WithDetail("file", path)
	}

	var layer map[string]interface{}
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, domain.NewConfigurationError("parsing config file", err).WithDetail("file", path)
	}

	log.WithField("file", path).Info("loaded configuration layer")
	return deepMerge(tree, layer), nil
}

// deepMerge returns a new tree where override wins; two mapping values merge
// recursively, any other type pair is replaced wholesale.
func deepMerge(source, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(source))
	for key, value := range source {
		result[key] = value
	}

	for key, value := range override {
		srcMap, srcIsMap := result[key].(map[string]interface{})
		ovrMap, ovrIsMap := value.(map[string]interface{})
		if srcIsMap && ovrIsMap {
			result[key] = deepMerge(srcMap, ovrMap)
			continue
		}
		result[key] = value
	}
	return result
}

// envOverrides builds a nested tree from MEDIA_PORTAL_* variables, splitting
// nested keys on "__" and coercing scalar values.
func envOverrides(environ []string) map[string]interface{} {
	overrides := make(map[string]interface{})
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		configKey := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		parts := strings.Split(configKey, "__")

		current := overrides
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = parseScalar(value)
	}
	return overrides
}

// parseScalar coerces text values from the environment: booleans, absent
// markers, integers, floats, then plain text.
func parseScalar(value string) interface{} {
	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	case "none", "null":
		return nil
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func fromTree(tree map[string]interface{}, root string) *Config {
	return &Config{
		Project: ProjectConfig{
			Name:    stringAt(tree, "project", "name"),
			Version: stringAt(tree, "project", "version"),
		},
		API: APIConfig{
			Host:        stringAt(tree, "api", "host"),
			Port:        intAt(tree, "api", "port"),
			Debug:       boolAt(tree, "api", "debug"),
			CORSOrigins: stringsAt(tree, "api", "cors_origins"),
		},
		FileServer: FileServerConfig{
			Host: stringAt(tree, "file_server", "host"),
			Port: intAt(tree, "file_server", "port"),
		},
		Database: DatabaseConfig{
			Type:       strings.ToLower(stringAt(tree, "database", "type")),
			SQLitePath: anchorPath(root, stringAt(tree, "database", "sqlite_path")),
			BoltPath:   anchorPath(root, stringAt(tree, "database", "bolt_path")),
		},
		Storage: StorageConfig{
			LocalStoragePath: anchorPath(root, stringAt(tree, "storage", "local_storage_path")),
			GCSBucketName:    stringAt(tree, "storage", "gcs_bucket_name"),
			UseCloudStorage:  boolAt(tree, "storage", "use_cloud_storage"),
		},
		Logging: LoggingConfig{
			Level: stringAt(tree, "logging", "level"),
			File:  anchorPath(root, stringAt(tree, "logging", "file")),
		},
		TempDir: anchorPath(root, stringAt(tree, "temp", "dir")),
		Retry: RetryConfig{
			MaxAttempts:   intAt(tree, "retry", "max_attempts"),
			Delay:         time.Duration(intAt(tree, "retry", "delay_ms")) * time.Millisecond,
			BackoffFactor: floatAt(tree, "retry", "backoff_factor"),
		},
	}
}

func anchorPath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func section(tree map[string]interface{}, name string) map[string]interface{} {
	if sub, ok := tree[name].(map[string]interface{}); ok {
		return sub
	}
	return nil
}

func stringAt(tree map[string]interface{}, name, key string) string {
	if v, ok := section(tree, name)[key].(string); ok {
		return v
	}
	return ""
}

func boolAt(tree map[string]interface{}, name, key string) bool {
	if v, ok := section(tree, name)[key].(bool); ok {
		return v
	}
	return false
}

func intAt(tree map[string]interface{}, name, key string) int {
	switch v := section(tree, name)[key].(type) {
	case int:
		return v
	case float64: // JSON numbers decode as float64
		return int(v)
	}
	return 0
}

func floatAt(tree map[string]interface{}, name, key string) float64 {
	switch v := section(tree, name)[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func stringsAt(tree map[string]interface{}, name, key string) []string {
	raw, ok := section(tree, name)[key].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

func ensureDirectories(cfg *Config) {
	dirs := []string{
		filepath.Dir(cfg.Logging.File),
		cfg.TempDir,
		cfg.Storage.LocalStoragePath,
	}
	if cfg.Database.Type == BackendSQLite {
		dirs = append(dirs, filepath.Dir(cfg.Database.SQLitePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithFields(log.Fields{"dir": dir, "error": err}).Warn("failed to create directory")
		}
	}
}

// ParseLogLevel maps the configured logging level onto a logrus level,
// defaulting to info.
func (c *Config) ParseLogLevel() log.Level {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
