package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
)

func TestNewWithDefaults(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		service     string
		wantLevel   hyperstream.Level
		wantJSON    bool
	}{
		{
			name:        "non-production environment",
			environment: constants.NonProductionEnvironment,
			service:     "passthrough",
			wantLevel:   hyperstream.DebugLevel,
			wantJSON:    false,
		},
		{
			name:        "production environment",
			environment: "production",
			service:     "passthrough",
			wantLevel:   hyperstream.InfoLevel,
			wantJSON:    true,
		},
		{
			name:        "empty environment",
			environment: "",
			service:     "passthrough",
			wantLevel:   hyperstream.InfoLevel,
			wantJSON:    true,
		},
		{
			name:        "empty service name",
			environment: constants.NonProductionEnvironment,
			service:     "",
			wantLevel:   hyperstream.DebugLevel,
			wantJSON:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithDefaults(context.Background(), tt.environment, tt.service)
			require.NoError(t, err)
			require.NotNil(t, logger)

			config := logger.GetConfig()
			assert.Equal(t, tt.wantLevel, config.Level)
			assert.Equal(t, tt.wantJSON, config.EnableJSON)
			assert.Equal(t, tt.wantLevel, logger.GetLevel())

			assert.Contains(t, config.AdditionalFields, hyperstream.Field{Key: "service", Value: tt.service})
			assert.Contains(t, config.AdditionalFields, hyperstream.Field{Key: "environment", Value: tt.environment})
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := hyperstream.DefaultConfig()
	config.CacheSize = -1

	_, err := New(context.Background(), config)
	require.Error(t, err)
}

func TestNew_WritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer

	config, err := hyperstream.NewConfigBuilder().WithOutput(&buf).WithJSONFormat(true).Build()
	require.NoError(t, err)

	logger, err := New(context.Background(), config)
	require.NoError(t, err)

	logger.Info("ready")

	assert.Contains(t, buf.String(), `"message":"ready"`)
}
