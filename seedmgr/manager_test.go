package seedmgr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Manta-Network/manta-signer/snacl"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

var (
	seedPassphrase = []byte("correct horse battery staple")

	// testPhrase is the BIP0039 test vector for all-zero entropy.
	testPhrase = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	otherPhrase = "legal winner thank year wave sausage worth useful " +
		"legal winner thank yellow"

	fastScrypt = &FastScryptOptions
)

func TestMain(m *testing.M) {
	SetSecretKeyGen(func(passphrase *[]byte,
		_ *ScryptOptions) (*snacl.SecretKey, error) {

		return defaultNewSecretKey(passphrase, &FastScryptOptions)
	})
	os.Exit(m.Run())
}

// setupDB creates a fresh bolt database in a temporary directory.
func setupDB(t *testing.T) *bolt.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "signer.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// setupManager creates an account from testPhrase and opens it.
func setupManager(t *testing.T) (*bolt.DB, *Manager) {
	t.Helper()

	db := setupDB(t)
	birthday := time.Unix(1650000000, 0)
	require.NoError(t, Create(db, seedPassphrase, testPhrase, fastScrypt, birthday))

	mgr, err := Open(db)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	return db, mgr
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, IsError(err, code), "want %v, got %v", code, err)
}

func TestCreateAndOpen(t *testing.T) {
	db := setupDB(t)

	require.False(t, Exists(db))
	_, err := Open(db)
	requireCode(t, err, ErrNoExist)

	birthday := time.Unix(1650000000, 0)
	require.NoError(t, Create(db, seedPassphrase, testPhrase, fastScrypt, birthday))
	require.True(t, Exists(db))

	err = Create(db, seedPassphrase, otherPhrase, fastScrypt, birthday)
	requireCode(t, err, ErrAlreadyExists)

	mgr, err := Open(db)
	require.NoError(t, err)
	defer mgr.Close()

	require.True(t, mgr.IsLocked())
	require.True(t, mgr.Birthday().Equal(birthday))
}

func TestCreateInvalidMnemonic(t *testing.T) {
	db := setupDB(t)

	err := Create(db, seedPassphrase, "abandon abandon abandon", fastScrypt,
		time.Now())
	requireCode(t, err, ErrInvalidMnemonic)
	require.False(t, Exists(db))
}

func TestLoadRootSeed(t *testing.T) {
	_, mgr := setupManager(t)

	want, err := SeedFromMnemonic(testPhrase)
	require.NoError(t, err)
	require.Len(t, want, SeedSize)

	tests := []struct {
		name       string
		passphrase []byte
		code       ErrorCode
		wantErr    bool
	}{
		{name: "correct", passphrase: seedPassphrase},
		{name: "wrong", passphrase: []byte("nope"), code: ErrWrongPassphrase, wantErr: true},
		{name: "empty", passphrase: nil, code: ErrWrongPassphrase, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := mgr.LoadRootSeed(tt.passphrase)
			if tt.wantErr {
				requireCode(t, err, tt.code)
				require.Error(t, mgr.VerifyPassword(tt.passphrase))
				return
			}
			require.NoError(t, err)
			require.Equal(t, want, seed)
			require.NoError(t, mgr.VerifyPassword(tt.passphrase))
		})
	}

	// Loading the seed leaves the lock state alone.
	require.True(t, mgr.IsLocked())
}

func TestUnlockLock(t *testing.T) {
	_, mgr := setupManager(t)

	_, err := mgr.RootSeed()
	requireCode(t, err, ErrLocked)
	requireCode(t, mgr.Lock(), ErrLocked)

	requireCode(t, mgr.Unlock([]byte("wrong")), ErrWrongPassphrase)
	require.True(t, mgr.IsLocked())

	require.NoError(t, mgr.Unlock(seedPassphrase))
	require.False(t, mgr.IsLocked())

	seed, err := mgr.RootSeed()
	require.NoError(t, err)
	want, _ := SeedFromMnemonic(testPhrase)
	require.Equal(t, want, seed)

	// Unlocking again with the same passphrase is a no-op.
	require.NoError(t, mgr.Unlock(seedPassphrase))
	require.False(t, mgr.IsLocked())

	// A mismatching passphrase on an unlocked manager locks it.
	requireCode(t, mgr.Unlock([]byte("wrong")), ErrWrongPassphrase)
	require.True(t, mgr.IsLocked())

	require.NoError(t, mgr.Unlock(seedPassphrase))
	require.NoError(t, mgr.Lock())
	require.True(t, mgr.IsLocked())

	mgr.Close()
	requireCode(t, mgr.Unlock(seedPassphrase), ErrClosed)
	_, err = mgr.LoadRootSeed(seedPassphrase)
	requireCode(t, err, ErrClosed)
}

func TestRecoveryPhrase(t *testing.T) {
	_, mgr := setupManager(t)

	phrase, err := mgr.RecoveryPhrase(seedPassphrase)
	require.NoError(t, err)
	require.Equal(t, testPhrase, phrase)

	_, err = mgr.RecoveryPhrase([]byte("wrong"))
	requireCode(t, err, ErrWrongPassphrase)
}

func TestGenerateMnemonic(t *testing.T) {
	phrase, err := GenerateMnemonic()
	require.NoError(t, err)

	seed, err := SeedFromMnemonic(phrase)
	require.NoError(t, err)
	require.Len(t, seed, SeedSize)

	db := setupDB(t)
	require.NoError(t, Create(db, seedPassphrase, phrase, fastScrypt, time.Now()))
	mgr, err := Open(db)
	require.NoError(t, err)
	defer mgr.Close()

	got, err := mgr.RecoveryPhrase(seedPassphrase)
	require.NoError(t, err)
	require.Equal(t, phrase, got)
}

func TestSeedFromMnemonicNormalizes(t *testing.T) {
	want, err := SeedFromMnemonic(testPhrase)
	require.NoError(t, err)

	got, err := SeedFromMnemonic("  ABANDON abandon abandon abandon abandon abandon\n" +
		"abandon abandon   abandon abandon abandon About ")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestChangePassphrase(t *testing.T) {
	db, mgr := setupManager(t)
	newPass := []byte("new passphrase")

	err := mgr.ChangePassphrase([]byte("wrong"), newPass, fastScrypt)
	requireCode(t, err, ErrWrongPassphrase)

	require.NoError(t, mgr.Unlock(seedPassphrase))
	require.NoError(t, mgr.ChangePassphrase(seedPassphrase, newPass, fastScrypt))

	// Still unlocked, and the new passphrase short-circuits.
	require.False(t, mgr.IsLocked())
	require.NoError(t, mgr.Unlock(newPass))
	require.NoError(t, mgr.Lock())

	requireCode(t, mgr.VerifyPassword(seedPassphrase), ErrWrongPassphrase)
	require.NoError(t, mgr.VerifyPassword(newPass))
	require.NoError(t, mgr.Unlock(newPass))

	// The change is persisted.
	mgr.Close()
	reopened, err := Open(db)
	require.NoError(t, err)
	defer reopened.Close()
	seed, err := reopened.LoadRootSeed(newPass)
	require.NoError(t, err)
	want, _ := SeedFromMnemonic(testPhrase)
	require.Equal(t, want, seed)
}

func TestResetPassphrase(t *testing.T) {
	db, mgr := setupManager(t)
	newPass := []byte("reset passphrase")

	tests := []struct {
		name   string
		phrase string
		code   ErrorCode
	}{
		{name: "invalid mnemonic", phrase: "not a phrase", code: ErrInvalidMnemonic},
		{name: "other account", phrase: otherPhrase, code: ErrWrongPassphrase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mgr.ResetPassphrase(tt.phrase, newPass, fastScrypt)
			requireCode(t, err, tt.code)
			require.NoError(t, mgr.VerifyPassword(seedPassphrase))
		})
	}

	require.NoError(t, mgr.Unlock(seedPassphrase))
	require.NoError(t, mgr.ResetPassphrase(testPhrase, newPass, fastScrypt))
	require.True(t, mgr.IsLocked())

	requireCode(t, mgr.VerifyPassword(seedPassphrase), ErrWrongPassphrase)
	require.NoError(t, mgr.Unlock(newPass))

	phrase, err := mgr.RecoveryPhrase(newPass)
	require.NoError(t, err)
	require.Equal(t, testPhrase, phrase)

	mgr.Close()
	reopened, err := Open(db)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.VerifyPassword(newPass))
}

func TestOpenVersionMismatch(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, Create(db, seedPassphrase, testPhrase, fastScrypt, time.Now()))

	defer func(v uint32) { latestMgrVersion = v }(latestMgrVersion)

	latestMgrVersion = LatestMgrVersion + 1
	_, err := Open(db)
	requireCode(t, err, ErrUpgrade)

	latestMgrVersion = LatestMgrVersion - 1
	_, err = Open(db)
	requireCode(t, err, ErrUpgrade)
}

func TestCreateCryptoKeyFailure(t *testing.T) {
	defer func(f func() (EncryptorDecryptor, error)) { newCryptoKey = f }(newCryptoKey)
	newCryptoKey = func() (EncryptorDecryptor, error) {
		return nil, errors.New("no randomness")
	}

	db := setupDB(t)
	err := Create(db, seedPassphrase, testPhrase, fastScrypt, time.Now())
	requireCode(t, err, ErrCrypto)
	require.False(t, Exists(db))
}

func TestErrorCodeString(t *testing.T) {
	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrDatabase, "ErrDatabase"},
		{ErrWrongPassphrase, "ErrWrongPassphrase"},
		{ErrInvalidMnemonic, "ErrInvalidMnemonic"},
		{ErrClosed, "ErrClosed"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.in.String())
	}

	inner := errors.New("boom")
	err := maybeConvertDbError(inner)
	requireCode(t, err, ErrDatabase)
	require.ErrorIs(t, err, inner)
	require.Equal(t, "bolt: boom: boom", err.Error())
}
