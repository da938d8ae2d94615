package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Manta-Network/manta-signer/internal/cfgutil"
	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func testSetupConfig(t *testing.T) *config {
	t.Helper()

	cfg := defaultConfig()
	cfg.AppDataDir = cfgutil.NewExplicitString(filepath.Join(t.TempDir(), "signer"))
	return &cfg
}

func TestOpenDBWithoutAccount(t *testing.T) {
	cfg := testSetupConfig(t)

	_, err := openDB(cfg)
	require.ErrorIs(t, err, errNoAccount)

	// The directory is created, the database is not.
	fi, err := os.Stat(cfg.AppDataDir.Value)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	exists, err := cfgutil.FileExists(cfg.dbPath())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestOpenDBForCreate(t *testing.T) {
	cfg := testSetupConfig(t)
	cfg.Create = true

	db, err := openDB(cfg)
	require.NoError(t, err)
	require.False(t, seedmgr.Exists(db))
	require.NoError(t, db.Close())

	// Once the file exists the daemon may open it.
	cfg.Create = false
	db, err = openDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestCheckCreateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, checkCreateDir(dir))
	require.NoError(t, checkCreateDir(dir))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	require.Error(t, checkCreateDir(file))
}

func TestScryptOptions(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, &seedmgr.DefaultScryptOptions, scryptOptions(&cfg))
	cfg.FastScrypt = true
	require.Equal(t, &seedmgr.FastScryptOptions, scryptOptions(&cfg))
}

func TestStoreAccountBirthday(t *testing.T) {
	cfg := testSetupConfig(t)
	cfg.Create = true
	db, err := openDB(cfg)
	require.NoError(t, err)
	defer db.Close()

	born := time.Unix(1_650_000_000, 0)
	clk := clock.NewTestClock(born)
	phrase := "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	require.NoError(t, storeAccount(db, []byte("pass"), phrase,
		&seedmgr.FastScryptOptions, clk))

	mgr, err := seedmgr.Open(db)
	require.NoError(t, err)
	defer mgr.Close()
	require.True(t, mgr.Birthday().Equal(born), mgr.Birthday())

	// An account already exists.
	err = storeAccount(db, []byte("pass"), phrase, &seedmgr.FastScryptOptions, clk)
	require.True(t, seedmgr.IsError(err, seedmgr.ErrAlreadyExists))
}
