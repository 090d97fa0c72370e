package main

import (
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
	"go.uber.org/zap"
)

func setupAutostart(enable bool, logger *zap.Logger) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return err
	}

	app := &autostart.App{
		Name:        "wakeup",
		DisplayName: "Wake Up",
		Exec:        []string{execPath},
	}

	switch {
	case enable && !app.IsEnabled():
		if err := app.Enable(); err != nil {
			return err
		}
		logger.Info("Autostart enabled", zap.String("exec", execPath))
	case !enable && app.IsEnabled():
		if err := app.Disable(); err != nil {
			return err
		}
		logger.Info("Autostart disabled")
	}

	return nil
}
