package qsim

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "qsim",
	Level:  log.WarnLevel,
})

// SetLogLevel changes the package logger level ("debug", "info", "warn",
// "error").
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Logger exposes the package logger so callers can redirect or restyle it.
func Logger() *log.Logger {
	return logger
}
