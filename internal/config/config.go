package config

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for master and worker processes.
type Config struct {
	Master    MasterConfig    `yaml:"master"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MasterConfig holds the master's HTTP server and registry settings.
type MasterConfig struct {
	Address      string        `yaml:"address" env:"MASTER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"MASTER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"MASTER_WRITE_TIMEOUT"`
	EnableCORS   bool          `yaml:"enable_cors" env:"MASTER_ENABLE_CORS"`
	// HeartbeatTTL enables the stale sweep when positive.
	HeartbeatTTL  time.Duration `yaml:"heartbeat_ttl" env:"MASTER_HEARTBEAT_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"MASTER_SWEEP_INTERVAL"`
}

// WorkerConfig holds the worker node settings.
type WorkerConfig struct {
	BaseURL           string        `yaml:"base_url" env:"WORKER_BASE_URL"`
	Port              int           `yaml:"port" env:"WORKER_PORT"`
	MasterURL         string        `yaml:"master_url" env:"WORKER_MASTER_URL"`
	Register          bool          `yaml:"register" env:"WORKER_REGISTER"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"WORKER_HEARTBEAT_INTERVAL"`
	MaxConnections    int           `yaml:"max_connections" env:"WORKER_MAX_CONNECTIONS"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"WORKER_REQUEST_TIMEOUT"`
	WorkStep          int           `yaml:"work_step" env:"WORKER_WORK_STEP"`
	WorkStepDelay     time.Duration `yaml:"work_step_delay" env:"WORKER_WORK_STEP_DELAY"`
}

// SchedulerConfig holds the master's polling loop settings.
type SchedulerConfig struct {
	Enabled        bool          `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	TargetURL      string        `yaml:"target_url" env:"WORKER_NODE_URL"`
	InitialDelay   time.Duration `yaml:"initial_delay" env:"SCHEDULER_INITIAL_DELAY"`
	TickInterval   time.Duration `yaml:"tick_interval" env:"SCHEDULER_TICK_INTERVAL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SCHEDULER_REQUEST_TIMEOUT"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Master: MasterConfig{
			Address:       ":5000",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			HeartbeatTTL:  0,
			SweepInterval: 10 * time.Second,
		},
		Worker: WorkerConfig{
			BaseURL:           "localhost",
			Port:              5001,
			MasterURL:         "http://localhost:5000",
			Register:          true,
			HeartbeatInterval: 5 * time.Second,
			MaxConnections:    64,
			RequestTimeout:    5 * time.Second,
			WorkStep:          5,
			WorkStepDelay:     500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			TargetURL:      "http://localhost:5001",
			InitialDelay:   5 * time.Second,
			TickInterval:   10 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// ListenAddress returns the host:port the worker's command listener binds to.
func (w WorkerConfig) ListenAddress() string {
	return net.JoinHostPort(hostOnly(w.BaseURL), strconv.Itoa(w.Port))
}

// AdvertiseURL returns the URL the worker registers with the master.
func (w WorkerConfig) AdvertiseURL() string {
	return "http://" + w.ListenAddress()
}

func hostOnly(base string) string {
	base = strings.TrimPrefix(base, "http://")
	base = strings.TrimPrefix(base, "https://")
	base = strings.TrimSuffix(base, "/")
	if h, _, err := net.SplitHostPort(base); err == nil {
		return h
	}
	return base
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs: make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets command-line overrides keyed by dot path, e.g. "worker.port".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration value by dot path, matching yaml names.
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}
	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(t.Field(i).Name, strings.ReplaceAll(name, "_", "")) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}
	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
