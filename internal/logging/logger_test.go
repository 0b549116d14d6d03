package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		development bool
		level       string
		min         zapcore.Level
	}{
		{name: "development preset", development: true, min: zapcore.DebugLevel},
		{name: "production preset", min: zapcore.InfoLevel},
		{name: "explicit warn", level: "warn", min: zapcore.WarnLevel},
		{name: "development overridden", development: true, level: "error", min: zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tc.development, tc.level)
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tc.min))
			if tc.min > zapcore.DebugLevel {
				require.False(t, logger.Core().Enabled(tc.min-1))
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "loud")
	require.ErrorContains(t, err, "parse log level")
}
