package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听配置文件变化并在冷却窗口之外回调。交易参数启动后不热生效，
// 回调方通常只记录“需要重启”。
func Watch(ctx context.Context, path string, cooldown time.Duration, onChange func()) error {
	if path == "" {
		return nil
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件本身，编辑器的原子替换会让 inode 失效
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if time.Since(last) < cooldown {
				continue
			}
			last = time.Now()
			if onChange != nil {
				onChange()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
