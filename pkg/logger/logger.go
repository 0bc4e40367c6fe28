package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger initializes the structured logger with proper configuration
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	return InitLoggerWithOutput(logLevel, isDevelopment, os.Stdout)
}

// InitLoggerWithOutput is InitLogger writing to out instead of stdout
func InitLoggerWithOutput(logLevel string, isDevelopment bool, out io.Writer) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	log.SetOutput(out)

	Logger = log

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

// WithService creates a logger with service context
func WithService(serviceName string) *logrus.Entry {
	return GetLogger().WithField("service", serviceName)
}

// WithModelVersion creates a logger with the version of the loaded strength model
func WithModelVersion(version string) *logrus.Entry {
	return GetLogger().WithField("model_version", version)
}

// WithPredictionContext creates a logger with the three names a prediction was asked for
func WithPredictionContext(driver, team, circuit string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"driver":  driver,
		"team":    team,
		"circuit": circuit,
	})
}

// WithImageContext creates a logger with image lookup context
func WithImageContext(entity, name string) *logrus.Entry {
	fields := logrus.Fields{}
	if entity != "" {
		fields["entity"] = entity
	}
	if name != "" {
		fields["name"] = name
	}
	return GetLogger().WithFields(fields)
}
