package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the config file whenever it changes on disk and hands the freshly
// decoded configuration to onChange. Reloads that fail validation are logged and
// skipped so a bad edit never replaces a working configuration. Only settings that
// are safe to change at runtime (currently the log level) should be applied by
// onChange; everything else still requires a restart.
//
// Watch is a no-op when no config file was found.
func Watch(configPath string, onChange func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		slog.Debug("config watch disabled: no config file in use")
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Error("config reload rejected", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	slog.Info("watching config file for changes", "file", v.ConfigFileUsed())
	return nil
}
