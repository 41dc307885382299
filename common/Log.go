package common

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const DefaultServiceName = "docflow"

// ConfigureLogging setup the standard logrus logger which is used across all packages
func ConfigureLogging(serviceName, level, format string) error {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	if strings.EqualFold(format, "json") {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{}
	}

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(lvl)
	}

	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	logger.ReplaceHooks(logrus.LevelHooks{})
	logger.AddHook(&DefaultFieldsHook{ServiceName: serviceName})
	return nil
}

type DefaultFieldsHook struct {
	ServiceName string
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = hook.ServiceName
	return nil
}
