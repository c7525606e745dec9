// Package log provides the structured logger used by the storage engine.
// Every component gets a logger scoped with a "component" field so a log
// aggregator can filter disk manager, buffer pool and replacer events
// independently.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the verbosity of every logger returned by For.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a logger scoped to the named component, e.g. "pager",
// "bufferpool", "replacer".
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
