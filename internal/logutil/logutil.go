// Package logutil configures the bot's single process-wide logrus
// logger: JSON formatting plus a "component" field stamped on every
// entry, so log lines aggregate cleanly across deployments.
package logutil

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures logrus's standard logger for component, at the given
// level name ("debug", "info", "warn", "error"; unrecognized values
// fall back to "info"). Call once at process startup, before any
// component begins logging.
func Init(component, level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(parseLevel(level))
	logrus.AddHook(&componentHook{component: component})
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// componentHook stamps every log entry with the owning component name.
type componentHook struct {
	component string
}

func (h *componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *componentHook) Fire(entry *logrus.Entry) error {
	entry.Data["component"] = h.component
	return nil
}
