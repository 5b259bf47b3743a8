package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置文件监听器
// 文件变更时重新反序列化配置并按注册顺序通知回调
type ConfigWatcher struct {
	viper     *viper.Viper
	current   *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	stopped   bool
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	v.SetConfigFile(configPath)
	return &ConfigWatcher{
		viper:   v,
		current: cfg,
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 读入配置并开始监听文件变更
// 变更后反序列化失败时保留旧配置,只记录告警
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.mu.RLock()
		stopped := w.stopped
		w.mu.RUnlock()
		if stopped {
			return
		}

		var updated Config
		if err := w.viper.Unmarshal(&updated); err != nil {
			logrus.WithError(err).Warn("failed to reload config, keeping previous values")
			return
		}

		w.mu.Lock()
		w.current = &updated
		callbacks := make([]func(*Config), len(w.callbacks))
		copy(callbacks, w.callbacks)
		w.mu.Unlock()

		// 回调在锁外执行,避免回调里读取配置时死锁
		for _, callback := range callbacks {
			callback(&updated)
		}
	})

	return nil
}

// Stop 停止处理后续变更
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
