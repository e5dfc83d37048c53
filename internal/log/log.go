// Package log provides component-tagged logrus entries shared by every
// pollnet package.
package log

import (
	"github.com/sirupsen/logrus"
)

// NewLogger returns an entry that stamps every line with the component tag.
func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger()).WithField("tag", tag)
}

// SetLevel parses level ("debug", "info", "warn", ...) and applies it to the
// shared logger. Unknown levels leave the current level in place.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}
