package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Manta-Network/manta-signer/rpc/signerrpc"
	"github.com/decred/slog"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

func TestParseAndSetDebugLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		valid bool
	}{
		{"global", "debug", true},
		{"pairs", "SMGR=trace,ZKPS=warn", true},
		{"bad level", "loud", false},
		{"bad subsystem", "XXXX=info", false},
		{"bad pair", "SMGR=info,ZKPS", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := parseAndSetDebugLevels(test.level)
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}

	require.NoError(t, parseAndSetDebugLevels("SHLD=critical"))
	require.Equal(t, slog.LevelCritical, shldLog.Level())
	require.NoError(t, parseAndSetDebugLevels("info"))
	require.Equal(t, slog.LevelInfo, shldLog.Level())

	require.Equal(t, []string{"RPCS", "SGNR", "SHLD", "SMGR", "ZKPS"},
		supportedSubsystems())
}

func TestCleanAndExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)
	t.Setenv("SIGNER_TEST_DIR", "/var/signer")

	require.Equal(t, "", cleanAndExpandPath(""))
	require.Equal(t, filepath.Join(home, "signer"), cleanAndExpandPath("~/signer/"))
	require.Equal(t, "/var/signer/db", cleanAndExpandPath("$SIGNER_TEST_DIR/./db"))
}

func TestParseConfig(t *testing.T) {
	appData := t.TempDir()

	cfg, _, err := parseConfig([]string{"--appdata=" + appData, "--create",
		"--fastscrypt", "--serviceurl=127.0.0.1", "--authorizer=ui"})
	require.NoError(t, err)
	require.True(t, cfg.Create)
	require.True(t, cfg.FastScrypt)
	require.Equal(t, "127.0.0.1:29987", cfg.ServiceURL)
	require.Equal(t, authorizerUI, cfg.Authorizer)
	require.Equal(t, signerrpc.DefaultRetryDelay, cfg.RetryDelay)
	require.Equal(t, filepath.Join(appData, defaultLogDirname), cfg.LogDir)
	require.Equal(t, filepath.Join(appData, defaultProvingDirname), cfg.ProvingKeyDir)
	require.Equal(t, filepath.Join(appData, signerDbName), cfg.dbPath())
	require.Equal(t, []string{signerrpc.DevOrigin, signerrpc.ProdOrigin}, cfg.origins())

	// Options from the config file apply unless overridden.
	conf := "[Application Options]\nmaxclients=3\nretrydelay=5s\n"
	require.NoError(t, os.WriteFile(filepath.Join(appData, defaultConfigFilename),
		[]byte(conf), 0600))
	cfg, _, err = parseConfig([]string{"--appdata=" + appData, "--maxclients=4"})
	require.NoError(t, err)
	require.Equal(t, 4, cfg.MaxClients)
	require.Equal(t, "5s", cfg.RetryDelay.String())

	invalid := [][]string{
		{"--appdata=" + appData, "--create", "--recover"},
		{"--appdata=" + appData, "--authorizer=telepathy"},
		{"--appdata=" + appData, "--maxclients=-1"},
		{"--appdata=" + appData, "--debuglevel=loud"},
	}
	for _, args := range invalid {
		_, _, err := parseConfig(args)
		require.Error(t, err, args)
	}
}

func TestVersion(t *testing.T) {
	require.Equal(t, "0.7.0-beta", version())
	require.Equal(t, "abc-1", normalizeVerString("a+b_c-1"))
}
