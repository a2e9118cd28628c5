package deta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv(EnvProjectKey, "proj1_secret")

	config := DefaultConfig()

	assert.Equal(t, "proj1_secret", config.ProjectKey)
	assert.Equal(t, "https://database.deta.sh/v1", config.BaseURL)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 2, config.RetryConfig.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.RetryConfig.InitialInterval)
	assert.Equal(t, 100, config.TransportConfig.MaxIdleConns)
	assert.Nil(t, config.CircuitBreakerConfig)
	assert.IsType(t, &NoopObserver{}, config.Observer)
}

func TestDefaultConfigWithoutEnv(t *testing.T) {
	t.Setenv(EnvProjectKey, "")

	config := DefaultConfig()
	assert.Empty(t, config.ProjectKey)
	assert.ErrorIs(t, config.Validate(), ErrMissingProjectKey)
}

func TestConfigBuilders(t *testing.T) {
	observer := NewMetricsCollector()
	strategy := &NoRetryStrategy{}

	config := DefaultConfig().
		WithProjectKey("p_s").
		WithBaseURL("http://localhost:8080").
		WithTimeout(5 * time.Second).
		WithRetries(7).
		WithHeader("X-Extra", "v").
		WithCircuitBreaker(DefaultCircuitBreakerConfig()).
		WithRetryStrategy(strategy).
		WithObserver(observer).
		WithPerEndpointCircuitBreaker()

	assert.Equal(t, "p_s", config.ProjectKey)
	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 7, config.RetryConfig.MaxRetries)
	assert.Equal(t, "v", config.Headers["X-Extra"])
	require.NotNil(t, config.CircuitBreakerConfig)
	assert.Equal(t, 5, config.CircuitBreakerConfig.FailureThreshold)
	assert.Same(t, strategy, config.RetryStrategy.(*NoRetryStrategy))
	assert.Same(t, observer, config.Observer)
	assert.True(t, config.EnablePerEndpointCircuitBreaker)
}

func TestConfigWithHeaderNilMap(t *testing.T) {
	config := &Config{}
	config.WithHeader("a", "1")
	assert.Equal(t, "1", config.Headers["a"])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing project key",
			mutate:  func(c *Config) { c.ProjectKey = "" },
			wantErr: ErrMissingProjectKey,
		},
		{
			name:    "project key with spaces",
			mutate:  func(c *Config) { c.ProjectKey = "a b_c" },
			wantErr: ErrInvalidProjectKey,
		},
		{
			name:    "project key with shell metacharacters",
			mutate:  func(c *Config) { c.ProjectKey = "a$(rm)_c" },
			wantErr: ErrInvalidProjectKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{ProjectKey: "proj_secret"}
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	config := &Config{ProjectKey: "proj_secret"}
	require.NoError(t, config.Validate())

	assert.Equal(t, "https://database.deta.sh/v1", config.BaseURL)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100*time.Millisecond, config.RetryConfig.InitialInterval)
	assert.Equal(t, 5*time.Second, config.RetryConfig.MaxInterval)
	assert.Equal(t, 2.0, config.RetryConfig.Multiplier)
	assert.NotNil(t, config.Observer)
}

func TestConfigValidateFillsCircuitBreakerDefaults(t *testing.T) {
	config := &Config{
		ProjectKey:           "proj_secret",
		CircuitBreakerConfig: &CircuitBreakerConfig{},
	}
	require.NoError(t, config.Validate())

	assert.Equal(t, 5, config.CircuitBreakerConfig.FailureThreshold)
	assert.Equal(t, 2, config.CircuitBreakerConfig.SuccessThreshold)
	assert.Equal(t, 30*time.Second, config.CircuitBreakerConfig.Timeout)
	assert.Equal(t, 3, config.CircuitBreakerConfig.HalfOpenRequests)
}

func TestValidProjectKey(t *testing.T) {
	assert.True(t, validProjectKey("a0abcyxz_aSecretValue"))
	assert.True(t, validProjectKey("Key-with.all~chars_09"))
	assert.False(t, validProjectKey("has space"))
	assert.False(t, validProjectKey("has\nnewline"))
	assert.False(t, validProjectKey("emoji🔑"))
}

func TestProjectID(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"a0abcyxz_aSecretValue", "a0abcyxz", false},
		{"proj_part1_part2", "proj", false},
		{"nounderscore", "", true},
		{"_leading", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, err := projectID(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidProjectKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
