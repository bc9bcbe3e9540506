package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the root configuration for both the server and the consumer
// commands. Values come from the YAML file, CHAT_RELAY_* environment
// variables and built-in defaults, in that order of precedence.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Hub      HubConfig      `mapstructure:"hub"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Database DatabaseConfig `mapstructure:"database"`

	// sourceFile remembers the backing file so Watch can re-read it.
	sourceFile string
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuthConfig selects the token directory backend. When DSN is set the
// directory reads tokens from Postgres; otherwise the static token table
// below is served from memory.
type AuthConfig struct {
	DSN    string                 `mapstructure:"dsn"`
	Tokens map[string]StaticToken `mapstructure:"tokens"`
}

// StaticToken seeds one principal in the in-memory directory, keyed by the
// opaque bearer token itself.
type StaticToken struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Staff    bool   `mapstructure:"staff"`
}

type HubConfig struct {
	MailboxSize int           `mapstructure:"mailbox_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// AMQPConfig wires the catalog notice bus. An empty URL disables the bus
// entirely; the server then runs without the staff notice listener and the
// consumer skips notice dispatch.
type AMQPConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	GroupID       string        `mapstructure:"group_id"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from the given file path (optional) plus
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.sourceFile = path

	return cfg, nil
}

// Watch re-reads the backing file whenever it changes on disk and hands each
// fresh snapshot to onChange. Unparseable rewrites are dropped and the last
// good snapshot stays in effect. No-op for configs loaded without a file.
func (c *Config) Watch(onChange func(*Config)) error {
	if c.sourceFile == "" || onChange == nil {
		return nil
	}

	v := newViper()
	v.SetConfigFile(c.sourceFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: watch %s: %w", c.sourceFile, err)
	}

	source := c.sourceFile
	v.OnConfigChange(func(fsnotify.Event) {
		fresh := new(Config)
		if err := v.Unmarshal(fresh); err != nil {
			return
		}
		fresh.sourceFile = source
		onChange(fresh)
	})
	v.WatchConfig()

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CHAT_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("hub.mailbox_size", 2048)
	v.SetDefault("hub.send_timeout", 500*time.Millisecond)
	v.SetDefault("kafka.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka.topic", "author-book-events")
	v.SetDefault("kafka.group_id", "chat-relay-consumer-group")
	v.SetDefault("kafka.retry_interval", 5*time.Second)
}
