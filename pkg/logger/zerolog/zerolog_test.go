package zerolog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	zl, err := New(Options{Level: "info", JSON: true, Output: buf})
	require.NoError(t, err)

	log := NewAdapter(zl)
	log.WithField("symbol", "AAPL").WithError(errors.New("boom")).Warn("plan rejected")
	log.Debug("hidden")

	out := buf.String()
	require.Contains(t, out, `"symbol":"AAPL"`)
	require.Contains(t, out, `"error":"boom"`)
	require.Contains(t, out, "plan rejected")
	require.NotContains(t, out, "hidden")
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	zl, err := New(Options{Level: "info", JSON: true, Output: buf})
	require.NoError(t, err)

	log := NewAdapter(zl)
	log.SetLevel(logger.ErrorLevel)
	require.Equal(t, logger.ErrorLevel, log.GetLevel())

	log.Info("skipped")
	require.Empty(t, buf.String())
}
