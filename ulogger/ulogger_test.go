package ulogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	log := NewZeroLogger("test", WithoutColor(), WithWriter(&buf), WithLevel("WARN"))

	log.Debugf("should not appear")
	require.Empty(t, buf.String())

	log.Warnf("should appear: %s", "x")
	require.Contains(t, buf.String(), "should appear: x")
}

func TestNewChildLogger(t *testing.T) {
	var buf bytes.Buffer

	log := NewZeroLogger("parent", WithoutColor(), WithWriter(&buf), WithLevel("INFO"))
	child := log.New("child")

	require.NotNil(t, child)

	child.Infof("hello from child")
	require.Contains(t, buf.String(), "hello from child")
}
