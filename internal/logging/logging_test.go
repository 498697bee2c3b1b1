package logging

import (
	"bytes"
	"math/big"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Warn, ParseLevel("warn"))
	assert.Equal(t, Warn, ParseLevel("WARNING"))
	assert.Equal(t, Debug, ParseLevel("debug"))
	assert.Equal(t, Trace, ParseLevel("trace"))
	assert.Equal(t, Info, ParseLevel(""))
	assert.Equal(t, Info, ParseLevel("nonsense"))
}

func TestLevelFromEnv(t *testing.T) {
	require.NoError(t, os.Setenv(EnvVar, "trace"))
	defer os.Unsetenv(EnvVar)
	assert.Equal(t, Trace, LevelFromEnv())
}

func TestLoggerGatesByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Info)

	log.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	log.Warnf("visible %d", 2)
	log.Infof("also visible")
	out := buf.String()
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "also visible")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestLoggerNoColorOnNonTerminalWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Trace)
	log.Tracef("plain")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestFitnessBarBounds(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Info)

	bar := log.FitnessBar(big.NewInt(0), big.NewInt(0))
	assert.Equal(t, barWidth, len([]rune(bar)))

	full := log.FitnessBar(big.NewInt(0), big.NewInt(100))
	empty := log.FitnessBar(big.NewInt(100), big.NewInt(100))
	assert.Equal(t, barWidth, len([]rune(full)))
	assert.Equal(t, barWidth, len([]rune(empty)))
	assert.NotEqual(t, full, empty)
}
