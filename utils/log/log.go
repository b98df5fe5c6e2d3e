package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// global accessible logger
var (
	Log *logrus.Logger
)

// This init function is here so that entry points other than main (unit tests
// in particular) get a usable logger instead of a nil pointer.
func init() {
	initLogger()
}

func initLogger() {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	env := os.Getenv("SPARK_ENV")
	if len(env) == 0 {
		env = "unknown"
	}
	Log.AddHook(&envHook{env: env})
}

// envHook stamps every entry with the deployment environment.
type envHook struct {
	env string
}

func (h *envHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *envHook) Fire(e *logrus.Entry) error {
	e.Data["env"] = h.env
	return nil
}
