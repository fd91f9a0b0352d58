package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/config.yaml"
	EnvConfig   = "QUANTGUARD_CONFIG"

	envAdvisoryKey   = "QUANTGUARD_ADVISORY_API_KEY"
	envDeepSeekKey   = "DEEPSEEK_API_KEY"
	envTelegramToken = "QUANTGUARD_TELEGRAM_TOKEN"
	envServerChanKey = "QUANTGUARD_SERVERCHAN_KEY"
)

// ResolvePath 选择配置文件：先看命令行参数，再看 QUANTGUARD_CONFIG，最后用 DefaultPath。
func ResolvePath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDotEnv 把 .env 风格文件加载进进程环境变量，文件不存在时忽略。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s failed: %w", p, err)
		}
	}
	return nil
}

// Load 读取配置（支持 include），补齐默认值并校验。
func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	return finish(&cfg, setKeys)
}

// LoadOrDefault 与 Load 相同，但 path 不存在时回落到 Default。
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	return Load(path)
}

// Default 返回内置配置，并应用环境变量中的密钥。
func Default() (*Config, error) {
	return finish(&Config{}, keySet{})
}

func finish(cfg *Config, keys keySet) (*Config, error) {
	cfg.applyDefaults(keys)
	cfg.applyEnv(os.Getenv)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	cfg.Include = nil
	return cfg, nil
}

// applyEnv 仅在配置文件未提供密钥时读取环境变量。
func (c *Config) applyEnv(getenv func(string) string) {
	if strings.TrimSpace(c.Advisory.APIKey) == "" {
		c.Advisory.APIKey = strings.TrimSpace(getenv(envAdvisoryKey))
	}
	if strings.TrimSpace(c.Advisory.APIKey) == "" {
		c.Advisory.APIKey = strings.TrimSpace(getenv(envDeepSeekKey))
	}
	if strings.TrimSpace(c.Notify.Telegram.BotToken) == "" {
		c.Notify.Telegram.BotToken = strings.TrimSpace(getenv(envTelegramToken))
	}
	if strings.TrimSpace(c.Notify.ServerChan.SendKey) == "" {
		c.Notify.ServerChan.SendKey = strings.TrimSpace(getenv(envServerChanKey))
	}
}

// Redacted 返回密钥打码后的副本，用于展示。
func (c Config) Redacted() Config {
	out := c
	out.Advisory.APIKey = mask(out.Advisory.APIKey)
	out.Notify.Telegram.BotToken = mask(out.Notify.Telegram.BotToken)
	out.Notify.ServerChan.SendKey = mask(out.Notify.ServerChan.SendKey)
	return out
}

// YAML 用加载器读取的同一套键名渲染配置。
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "******"
	}
	return secret[:3] + "******" + secret[len(secret)-2:]
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := collectConfigFiles(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := collectConfigFiles(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			ordered = append(ordered, sub...)
		}
	}
	delete(stack, path)
	seen[path] = true
	ordered = append(ordered, path)
	return ordered, nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	switch val := raw.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("include only supports strings")
			}
			str = strings.TrimSpace(str)
			if str != "" {
				out = append(out, str)
			}
		}
		return out, nil
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			keyStr, ok := k.(string)
			if !ok {
				continue
			}
			next := strings.ToLower(strings.TrimSpace(keyStr))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
