package common

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var ServiceName = "protocolo"

func init() {
	ConfigureLogger(os.Stdout, "info", "")
}

// ConfigureLogger set up the standard logrus logger. format is "json", "text" or empty (detect by terminal).
func ConfigureLogger(out io.Writer, level, format string) {
	logger := logrus.StandardLogger()
	logger.Out = out

	switch strings.ToLower(format) {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{}
	case "text":
		logger.Formatter = &logrus.TextFormatter{}
	default:
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			logger.Formatter = &logrus.TextFormatter{}
		} else {
			logger.Formatter = &logrus.JSONFormatter{}
		}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.ReplaceHooks(logrus.LevelHooks{})
	logger.AddHook(&DefaultFieldsHook{})
}

type DefaultFieldsHook struct {
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = ServiceName
	return nil
}
