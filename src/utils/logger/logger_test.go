package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/chainwatch/utxo-syncer/src/utils/config"

	"github.com/stretchr/testify/require"
)

func TestJsonOutput(t *testing.T) {
	conf := config.Default()
	conf.LogLevel = "info"
	conf.LogFormat = "json"

	var buf bytes.Buffer
	require.NoError(t, InitWithOutput(conf, &buf))

	NewSublogger("engine").WithField("height", 7).Info("Committed")
	NewSublogger("engine").Debug("Filtered out")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Committed", line["message"])
	require.Equal(t, "utxo.engine", line["module"])
	require.Equal(t, float64(7), line["height"])
}

func TestInvalidConfig(t *testing.T) {
	conf := config.Default()

	conf.LogLevel = "loud"
	require.Error(t, InitWithOutput(conf, &bytes.Buffer{}))

	conf.LogLevel = "info"
	conf.LogFormat = "xml"
	require.Error(t, InitWithOutput(conf, &bytes.Buffer{}))
}
