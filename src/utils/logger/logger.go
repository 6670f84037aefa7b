package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/config"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch format {
	case "", "text":
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		}, nil
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// Configures the shared logger, output is stdout
func Init(config *config.Config) error {
	return InitWithOutput(config, os.Stdout)
}

func InitWithOutput(config *config.Config, out io.Writer) (err error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return
	}

	formatter, err := newFormatter(config.LogFormat)
	if err != nil {
		return
	}

	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(formatter)

	return nil
}

func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "utxo." + tag})
}
