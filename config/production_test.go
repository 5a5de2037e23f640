package config

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadProductionConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequiredEnv(t)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 168*time.Hour, cfg.Leads.LinkTTL)
	assert.Equal(t, 10, cfg.Leads.LinkCodeLength)
	assert.True(t, cfg.Leads.SeedDefaultStatuses)
	assert.Equal(t, "0.0.0.0:8081", cfg.Realtime.Addr)
	assert.Equal(t, 54*time.Second, cfg.Realtime.PingPeriod)
	assert.Equal(t, int64(512), cfg.Realtime.MaxMessageSize)
	assert.Equal(t, time.Hour, cfg.Scheduler.LinkCleanupInterval)
	assert.Equal(t, "leadflow", cfg.JWT.Issuer)
	assert.Equal(t, "leadflow:", cfg.Cache.RedisPrefix)
	assert.Equal(t, 1, cfg.Server.CompressionLevel)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoadProductionConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequiredEnv(t)
	t.Setenv("LINK_TTL", "24h")
	t.Setenv("REALTIME_ALLOWED_ORIGINS", "https://crm.example.com, https://admin.example.com ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Leads.LinkTTL)
	assert.Equal(t, []string{"https://crm.example.com", "https://admin.example.com"}, cfg.Realtime.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateProductionConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequiredEnv(t)
	base, err := LoadProductionConfig()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(cfg *ProductionConfig)
		wantErr []string
	}{
		{
			name:   "Valid",
			mutate: func(cfg *ProductionConfig) {},
		},
		{
			name: "ShortSecretAndMissingHost",
			mutate: func(cfg *ProductionConfig) {
				cfg.JWT.SecretKey = "short"
				cfg.Database.Host = ""
			},
			wantErr: []string{"DB_HOST is required", "JWT_SECRET_KEY must be at least 32 characters long"},
		},
		{
			name: "PingNotShorterThanPong",
			mutate: func(cfg *ProductionConfig) {
				cfg.Realtime.PingPeriod = cfg.Realtime.PongWait
			},
			wantErr: []string{"REALTIME_PING_PERIOD must be shorter than REALTIME_PONG_WAIT"},
		},
		{
			name: "RealtimeDisabledSkipsChecks",
			mutate: func(cfg *ProductionConfig) {
				cfg.Realtime.Enabled = false
				cfg.Realtime.Addr = ""
			},
		},
		{
			name: "BadLinkSettings",
			mutate: func(cfg *ProductionConfig) {
				cfg.Leads.LinkTTL = 0
				cfg.Leads.LinkCodeLength = 4
			},
			wantErr: []string{"LINK_TTL must be positive", "LINK_CODE_LENGTH must be between 8 and 64"},
		},
		{
			name: "UnknownLogLevel",
			mutate: func(cfg *ProductionConfig) {
				cfg.Logging.Level = "verbose"
			},
			wantErr: []string{"LOG_LEVEL must be one of"},
		},
		{
			name: "CompressionLevelOutOfRange",
			mutate: func(cfg *ProductionConfig) {
				cfg.Server.CompressionLevel = 6
			},
			wantErr: []string{"SERVER_COMPRESSION_LEVEL must be between -1 and 2"},
		},
		{
			name: "UnsupportedTLSVersion",
			mutate: func(cfg *ProductionConfig) {
				cfg.Security.TLSEnabled = true
				cfg.Security.TLSMinVersion = "1.1"
			},
			wantErr: []string{"TLS_MIN_VERSION must be 1.2 or 1.3"},
		},
		{
			name: "TLSVersionIgnoredWhenDisabled",
			mutate: func(cfg *ProductionConfig) {
				cfg.Security.TLSEnabled = false
				cfg.Security.TLSMinVersion = "1.1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)

			err := ValidateProductionConfig(&cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestMinTLSVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "", want: tls.VersionTLS13},
		{in: "1.3", want: tls.VersionTLS13},
		{in: "1.2", want: tls.VersionTLS12},
		{in: "1.0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SecurityConfig{TLSMinVersion: tt.in}.MinTLSVersion()
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
