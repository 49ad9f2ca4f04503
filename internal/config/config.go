package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// Config is the process configuration shared by the cli and the server.
type Config struct {
	AppName string `mapstructure:"app_name"`

	Data struct {
		Path       string   `mapstructure:"path"`
		Table      string   `mapstructure:"table"`
		Schema     string   `mapstructure:"schema"`
		Delimiter  string   `mapstructure:"delimiter"`
		HasHeader  bool     `mapstructure:"has_header"`
		NullTokens []string `mapstructure:"null_tokens"`
		TimeLayout string   `mapstructure:"time_layout"`
		Strict     bool     `mapstructure:"strict"`
	} `mapstructure:"data"`

	Server struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		BatchSize    int           `mapstructure:"batch_size"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		SeqURL string `mapstructure:"seq_url"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "columnar-datasource")
	v.SetDefault("data.path", "data/customer_export.csv.gz")
	v.SetDefault("data.table", "customer")
	v.SetDefault("data.schema", loader.CustomerSchemaSpec)
	v.SetDefault("data.delimiter", ",")
	v.SetDefault("data.has_header", true)
	v.SetDefault("data.null_tokens", []string{"NULL"})
	v.SetDefault("data.time_layout", columnar.TimestampLayout)
	v.SetDefault("data.strict", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.batch_size", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.seq_url", "")
}

// EnvPrefix prefixes environment overrides, e.g. COLUMNAR_SERVER_ADDR for server.addr.
const EnvPrefix = "COLUMNAR"

// Load reads a yaml file on top of the defaults, then applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len([]rune(cfg.Data.Delimiter)) != 1 {
		return nil, fmt.Errorf("data.delimiter must be a single character, got %q", cfg.Data.Delimiter)
	}
	return &cfg, nil
}

// TableSchema parses data.schema for data.table.
func (c *Config) TableSchema() (storage.TableSchema, error) {
	return storage.ParseSchema(c.Data.Table, c.Data.Schema)
}

// LoaderOptions converts the data section into loader options.
func (c *Config) LoaderOptions() loader.Options {
	return loader.Options{
		Delimiter:  []rune(c.Data.Delimiter)[0],
		HasHeader:  c.Data.HasHeader,
		NullTokens: c.Data.NullTokens,
		TimeLayout: c.Data.TimeLayout,
		Strict:     c.Data.Strict,
	}
}
