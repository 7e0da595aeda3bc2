package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/matsuri"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_CONFIG_PATH = "config.yaml"

	CACHE_MODE_LOCAL = "local"
	CACHE_MODE_R2    = "r2"
)

type Config struct {
	Token            string   `yaml:"token"`
	APIToken         string   `yaml:"api_token"`
	APIBaseURL       string   `yaml:"api_base_url"`
	CacheRoot        string   `yaml:"cache_root"`
	CacheMode        string   `yaml:"cache_mode"`
	HistoryDir       string   `yaml:"history_dir"`
	R2               R2Config `yaml:"r2"`
	Delay            Duration `yaml:"delay"`
	MinimumWait      Duration `yaml:"minimum_wait"`
	Retry            Duration `yaml:"retry"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	BroadcastRate    float64  `yaml:"broadcast_rate"`
	LogLevel         string   `yaml:"log_level"`
	MetricsAddr      string   `yaml:"metrics_addr"`
	AnnouncementPath string   `yaml:"announcement_path"`
	Texts            Texts    `yaml:"texts"`
}

type R2Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyId     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func (c R2Config) Credentials() dao.R2Credentials {
	return dao.R2Credentials{
		Endpoint:        c.Endpoint,
		AccessKeyId:     c.AccessKeyId,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// Texts are the user facing replies of the bot.
type Texts struct {
	// Recover takes the bot name as its only argument.
	Recover       string `yaml:"recover"`
	Greet         string `yaml:"greet"`
	Bye           string `yaml:"bye"`
	NoPermission  string `yaml:"no_permission"`
	CacheMiss     string `yaml:"cache_miss"`
	EventNotFound string `yaml:"event_not_found"`
	NoBorder      string `yaml:"no_border"`
	PurgeWarning  string `yaml:"purge_warning"`
	PurgeConfirm  string `yaml:"purge_confirm"`
	PurgeCanceled string `yaml:"purge_canceled"`
}

func DefaultTexts() Texts {
	return Texts{
		Recover:       "%s が再起動しました。ボーダーの通知を再開します。",
		Greet:         "このチャンネルにボーダーを通知します。",
		Bye:           "このチャンネルへのボーダー通知を停止しました。",
		NoPermission:  "このコマンドはサーバーの所有者しか使えません。",
		CacheMiss:     "まだボーダーのデータがありません。",
		EventNotFound: "指定されたイベントが見つかりません。",
		NoBorder:      "このイベントにはボーダーがありません。",
		PurgeWarning:  "このチャンネルにあるボットのメッセージを削除します。実行するには `!purge confirm` を送ってください。",
		PurgeConfirm:  "メッセージを削除します。",
		PurgeCanceled: "削除を中止しました。",
	}
}

func Default() *Config {
	return &Config{
		APIBaseURL:     matsuri.BASE_URL,
		CacheRoot:      "cache",
		CacheMode:      CACHE_MODE_LOCAL,
		HistoryDir:     "history",
		R2:             R2Config{Bucket: "mltd-border-predict", Prefix: "borderbot"},
		Delay:          Duration(5 * time.Second),
		MinimumWait:    Duration(10 * time.Second),
		Retry:          Duration(30 * time.Second),
		RequestTimeout: Duration(matsuri.DEFAULT_TIMEOUT),
		BroadcastRate:  5,
		LogLevel:       "info",
		Texts:          DefaultTexts(),
	}
}

// Load reads the YAML file at path, then .env, then the environment. A
// missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		logrus.Warnf("Config file %s not found, using defaults and environment", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BORDERBOT_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("BORDERBOT_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("BORDERBOT_CACHE_MODE"); v != "" {
		c.CacheMode = v
	}
	if v := os.Getenv("BORDERBOT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("R2_ENDPOINT"); v != "" {
		c.R2.Endpoint = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		c.R2.AccessKeyId = v
	}
	if v := os.Getenv("R2_SECRET_ACCESS_KEY"); v != "" {
		c.R2.SecretAccessKey = v
	}
}

// fillDefaults restores fields an explicit empty YAML value cleared.
func (c *Config) fillDefaults() {
	def := Default()
	if c.APIBaseURL == "" {
		c.APIBaseURL = def.APIBaseURL
	}
	if c.CacheRoot == "" {
		c.CacheRoot = def.CacheRoot
	}
	if c.CacheMode == "" {
		c.CacheMode = def.CacheMode
	}
	if c.HistoryDir == "" {
		c.HistoryDir = def.HistoryDir
	}
	if c.R2.Bucket == "" {
		c.R2.Bucket = def.R2.Bucket
	}
	if c.Retry <= 0 {
		c.Retry = def.Retry
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	texts := []struct{ got, fallback *string }{
		{&c.Texts.Recover, &def.Texts.Recover},
		{&c.Texts.Greet, &def.Texts.Greet},
		{&c.Texts.Bye, &def.Texts.Bye},
		{&c.Texts.NoPermission, &def.Texts.NoPermission},
		{&c.Texts.CacheMiss, &def.Texts.CacheMiss},
		{&c.Texts.EventNotFound, &def.Texts.EventNotFound},
		{&c.Texts.NoBorder, &def.Texts.NoBorder},
		{&c.Texts.PurgeWarning, &def.Texts.PurgeWarning},
		{&c.Texts.PurgeConfirm, &def.Texts.PurgeConfirm},
		{&c.Texts.PurgeCanceled, &def.Texts.PurgeCanceled},
	}
	for _, t := range texts {
		if *t.got == "" {
			*t.got = *t.fallback
		}
	}
}

func (c *Config) Validate() error {
	switch c.CacheMode {
	case CACHE_MODE_LOCAL:
	case CACHE_MODE_R2:
		if c.R2.Bucket == "" || c.R2.Endpoint == "" {
			return errors.New("cache_mode r2 needs r2.bucket and R2_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown cache_mode %q", c.CacheMode)
	}
	if c.Delay < 0 || c.MinimumWait < 0 {
		return errors.New("delay and minimum_wait must not be negative")
	}
	if c.BroadcastRate < 0 {
		return errors.New("broadcast_rate must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireTokens reports the credentials the long running bot cannot start without.
func (c *Config) RequireTokens() error {
	if c.Token == "" {
		return errors.New("token is not filled in")
	}
	if c.APIToken == "" {
		return errors.New("api_token is not filled in")
	}
	return nil
}

func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Duration accepts a number of seconds, a Go duration such as "1m5s", or
// the minutes-and-seconds shorthand "1m5".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if mins, secs, ok := strings.Cut(s, "m"); ok {
		m, errM := strconv.Atoi(mins)
		sec, errS := strconv.Atoi(secs)
		if errM == nil && errS == nil {
			return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}
