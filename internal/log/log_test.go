package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTagsEntries(t *testing.T) {
	entry := NewLogger("ws")
	assert.Equal(t, "ws", entry.Data["tag"])
}

func TestSetLevel(t *testing.T) {
	prev := logrus.GetLevel()
	defer logrus.SetLevel(prev)

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.NoError(t, SetLevel(""))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}
