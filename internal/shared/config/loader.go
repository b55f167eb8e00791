package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "CONQUEST"

// Loader 持有当前配置，文件变更时重新解码并通知订阅者。
type Loader struct {
	v    *viper.Viper
	path string

	mu       sync.RWMutex
	conf     Config
	watchers []func(Config)
}

func load(configPath string) (*Loader, error) {
	if !fileExist(configPath) {
		return nil, fmt.Errorf("config file not exist, configPath=%v", configPath)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	// CONQUEST_MYSQL_HOST 覆盖 mysql.host
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	l := &Loader{v: v, path: configPath}
	conf, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.conf = conf
	return l, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "conquest")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9090)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("mongodb.database", "conquest")
	v.SetDefault("log.level", "info")
	v.SetDefault("runtime.ask_timeout", 3*time.Second)
	v.SetDefault("runtime.sweep_interval", 2*time.Second)
	v.SetDefault("runtime.flush_interval", 5*time.Second)
	v.SetDefault("runtime.close_timeout", 10*time.Second)
	v.SetDefault("rate_limit.rps", 10)
	v.SetDefault("rate_limit.burst", 20)
}

func (l *Loader) decode() (Config, error) {
	var c Config
	err := l.v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("viper unmarshal config: %w", err)
	}
	return c, nil
}

// Current 当前配置的拷贝。
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conf
}

func (l *Loader) Path() string {
	return l.path
}

// OnChange 订阅配置变更；第一次订阅时开始监听文件。
// 解码失败的变更被丢弃，onError 收到原因。
func (l *Loader) OnChange(fn func(Config), onError func(error)) {
	l.mu.Lock()
	first := len(l.watchers) == 0
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
	if !first {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := l.reload(); err != nil && onError != nil {
			onError(err)
		}
	})
	l.v.WatchConfig()
}

// reload 重新读取并解码配置文件，成功后依次通知订阅者；失败时保留旧配置。
func (l *Loader) reload() error {
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reread config: %w", err)
	}
	conf, err := l.decode()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conf = conf
	watchers := slices.Clone(l.watchers)
	l.mu.Unlock()
	for _, w := range watchers {
		w(conf)
	}
	return nil
}

func fileExist(fileName string) bool {
	_, err := os.Stat(fileName)
	return err == nil
}
