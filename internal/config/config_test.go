package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests since Load
// drives a package-level viper instance.
func resetViper() {
	viper.Reset()
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper()
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ProfileStandard, cfg.Profile)
	require.Equal(t, "/api/v1", cfg.API.V1Prefix)
	require.Equal(t, 100, cfg.API.PageSizeMax)
	require.Equal(t, ":8350", cfg.Server.ListenAddr)
	require.Equal(t, 5, cfg.Bus.RetryMaxAttempts)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	resetViper()
	require.NoError(t, os.Setenv("PROFILE", "lite"))
	require.NoError(t, os.Setenv("SERVER_LISTEN_ADDR", ":9000"))
	t.Cleanup(func() {
		os.Unsetenv("PROFILE")
		os.Unsetenv("SERVER_LISTEN_ADDR")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ProfileLite, cfg.Profile)
	require.Equal(t, ":9000", cfg.Server.ListenAddr)
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := &Config{Profile: "nonsense", Server: ServerConfig{ListenAddr: ":1"}, API: APIConfig{PageSizeMax: 10}, Bus: BusConfig{RetryMaxAttempts: 1}}
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresDatabaseHostForStandardProfile(t *testing.T) {
	cfg := &Config{
		Profile: ProfileStandard,
		Server:  ServerConfig{ListenAddr: ":8350"},
		API:     APIConfig{PageSizeMax: 100},
		Bus:     BusConfig{RetryMaxAttempts: 5},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresSQLitePathForLiteProfile(t *testing.T) {
	cfg := &Config{
		Profile: ProfileLite,
		Server:  ServerConfig{ListenAddr: ":8350"},
		API:     APIConfig{PageSizeMax: 100},
		Bus:     BusConfig{RetryMaxAttempts: 5},
	}
	require.Error(t, cfg.Validate())
}

func TestValidatePassesForWellFormedLiteConfig(t *testing.T) {
	cfg := &Config{
		Profile: ProfileLite,
		Server:  ServerConfig{ListenAddr: ":8350"},
		API:     APIConfig{PageSizeMax: 100},
		Bus:     BusConfig{RetryMaxAttempts: 5},
		SQLite:  SQLiteConfig{Path: "/data/library.db"},
	}
	require.NoError(t, cfg.Validate())
}
