package logging_helper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"candlelab/go_src/configuration"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures application logging using Logrus and Lumberjack.
// The log file lives under <FilePath>/<appName>/<appName>.log with size
// based rotation.
func SetupLogging(config *configuration.Config, appName string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if appName == "" {
		return fmt.Errorf("appName cannot be empty")
	}

	logConfig := config.Logging

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	logrus.SetFormatter(formatter)

	levelStr := strings.ToLower(logConfig.Level)
	level, errLevel := logrus.ParseLevel(levelStr)
	if errLevel != nil {
		logrus.Warnf("Invalid log level '%s' in config, defaulting to 'info'. Error: %v", logConfig.Level, errLevel)
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(level)
	}

	if logConfig.FilePath == "" {
		err := fmt.Errorf("log path (config.Logging.FilePath) is not configured")
		logrus.Error(err.Error())
		return err
	}
	logDir := filepath.Join(logConfig.FilePath, appName)
	if errMkdir := os.MkdirAll(logDir, 0755); errMkdir != nil {
		err := fmt.Errorf("failed to create log directory '%s': %w", logDir, errMkdir)
		logrus.Error(err.Error())
		return err
	}
	logFile := filepath.Join(logDir, appName+".log")

	lumberjackLogger := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logConfig.RotationSize,
		MaxBackups: logConfig.MaxBackups,
		Compress:   true,
	}
	if logConfig.RotationSize <= 0 {
		lumberjackLogger.MaxSize = 2
		logrus.Warnf("logConfig.RotationSize is invalid (%d), defaulting to 2MB", logConfig.RotationSize)
	}
	if logConfig.MaxBackups <= 0 {
		lumberjackLogger.MaxBackups = 5
		logrus.Warnf("logConfig.MaxBackups is invalid (%d), defaulting to 5", logConfig.MaxBackups)
	}

	var writers []io.Writer
	if logConfig.ConsoleOutput {
		writers = append(writers, os.Stdout)
	}
	writers = append(writers, lumberjackLogger)
	logrus.SetOutput(io.MultiWriter(writers...))

	if errLevel != nil {
		logrus.Warnf("Invalid log level '%s' (from config) was overridden to 'info'. Error: %v", logConfig.Level, errLevel)
	}

	logrus.Infof("-------------------------------- Started %s application --------------------------------", appName)
	logrus.Infof("Logging configured: Level=%s, File=%s, ConsoleOutput=%t", logrus.GetLevel().String(), logFile, logConfig.ConsoleOutput)

	return nil
}
