package configwatcher

import (
	"color_academy_backend/internal/config"
	"color_academy_backend/pkg/logger"
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader 收到校验通过的新配置
type Reloader func(cfg *config.Config)

const debounce = time.Second

// Watch 监听配置目录，写入事件防抖后重新加载。ctx 取消时返回。
// 监听目录而不是文件本身，编辑器的原子替换同样能触发。
func Watch(ctx context.Context, configDir string, reload Reloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return err
	}
	if err := watcher.Add(absDir); err != nil {
		return err
	}
	logger.Log.Info("Watching config directory", zap.String("dir", absDir))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != "config.yaml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			newCfg, err := config.LoadConfig(configDir)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded",
				zap.Int("mobileMaxWidth", newCfg.Device.MobileMaxWidth),
				zap.Int("tabletMaxWidth", newCfg.Device.TabletMaxWidth),
				zap.String("tabletVariant", newCfg.Device.TabletVariant))
			reload(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
