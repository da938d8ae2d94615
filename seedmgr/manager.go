// Package seedmgr stores the signer's root seed encrypted under the user's
// password and hands it out to callers that can prove knowledge of that
// password.
package seedmgr

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"io"
	"sync"
	"time"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/Manta-Network/manta-signer/snacl"
	"github.com/tyler-smith/go-bip39"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"
)

const (
	// saltSize is the number of bytes of the salt used when hashing
	// private passphrases.
	saltSize = 32
)

// ScryptOptions is used to hold the scrypt parameters needed when deriving new
// passphrase keys.
type ScryptOptions struct {
	N, R, P int
}

// DefaultScryptOptions is the default options used with scrypt.
var DefaultScryptOptions = ScryptOptions{
	N: 262144, // 2^18
	R: 8,
	P: 1,
}

// FastScryptOptions are the scrypt options that should be used for testing
// purposes only where speed is more important than security.
var FastScryptOptions = ScryptOptions{
	N: 16,
	R: 8,
	P: 1,
}

// SecretKeyGenerator is the function signature of a method that can generate
// secret keys for the seed manager.
type SecretKeyGenerator func(
	passphrase *[]byte, config *ScryptOptions) (*snacl.SecretKey, error)

// defaultNewSecretKey returns a new secret key.  See newSecretKey.
func defaultNewSecretKey(passphrase *[]byte,
	config *ScryptOptions) (*snacl.SecretKey, error) {
	return snacl.NewSecretKey(passphrase, config.N, config.R, config.P)
}

var (
	// secretKeyGen is the inner method that is executed when calling
	// newSecretKey.
	secretKeyGen = defaultNewSecretKey

	// secretKeyGenMtx protects access to secretKeyGen, so that it can be
	// replaced in testing.
	secretKeyGenMtx sync.RWMutex
)

// SetSecretKeyGen replaces the existing secret key generator, and returns the
// previous generator.
func SetSecretKeyGen(keyGen SecretKeyGenerator) SecretKeyGenerator {
	secretKeyGenMtx.Lock()
	oldKeyGen := secretKeyGen
	secretKeyGen = keyGen
	secretKeyGenMtx.Unlock()

	return oldKeyGen
}

// newSecretKey generates a new secret key using the active secretKeyGen.
func newSecretKey(passphrase *[]byte, config *ScryptOptions) (*snacl.SecretKey, error) {
	secretKeyGenMtx.RLock()
	defer secretKeyGenMtx.RUnlock()
	return secretKeyGen(passphrase, config)
}

// EncryptorDecryptor provides an abstraction on top of snacl.CryptoKey so that
// our tests can use dependency injection to force the behaviour they need.
type EncryptorDecryptor interface {
	Encrypt(in []byte) ([]byte, error)
	Decrypt(in []byte) ([]byte, error)
	Bytes() []byte
	CopyBytes([]byte)
	Zero()
}

// cryptoKey extends snacl.CryptoKey to implement EncryptorDecryptor.
type cryptoKey struct {
	snacl.CryptoKey
}

// Bytes returns a copy of this crypto key's byte slice.
func (ck *cryptoKey) Bytes() []byte {
	return ck.CryptoKey[:]
}

// CopyBytes copies the bytes from the given slice into this CryptoKey.
func (ck *cryptoKey) CopyBytes(from []byte) {
	copy(ck.CryptoKey[:], from)
}

// defaultNewCryptoKey returns a new CryptoKey.  See newCryptoKey.
func defaultNewCryptoKey() (EncryptorDecryptor, error) {
	key, err := snacl.GenerateCryptoKey()
	if err != nil {
		return nil, err
	}
	return &cryptoKey{*key}, nil
}

// newCryptoKey is used as a way to replace the new crypto key generation
// function used so tests can provide a version that fails for testing error
// paths.
var newCryptoKey = defaultNewCryptoKey

// seedFingerprint commits to a root seed without revealing it, so that a
// recovery phrase can be checked while the manager is locked.
func seedFingerprint(salt *[32]byte, seed []byte) [32]byte {
	salted := make([]byte, 0, len(salt)+len(seed))
	salted = append(salted, salt[:]...)
	salted = append(salted, seed...)
	fp := sha3.Sum256(salted)
	zero.Bytes(salted)
	return fp
}

// Manager guards the sealed root seed of a single signer account.
type Manager struct {
	mtx sync.RWMutex

	db       *bolt.DB
	birthday time.Time
	locked   bool
	closed   bool

	// masterKeyPriv is the passphrase derived key that secures
	// cryptoKeySeed.  Changing the password only re-seals that one key.
	//
	// The underlying master private key will be zeroed when the manager
	// is locked.
	masterKeyPriv *snacl.SecretKey

	// cryptoKeySeed is the key used to encrypt the root seed and the
	// mnemonic entropy.
	//
	// This key will be zeroed when the manager is locked.
	cryptoKeySeedEncrypted []byte
	cryptoKeySeed          EncryptorDecryptor

	seedEncrypted    []byte
	entropyEncrypted []byte
	seedHash         [32]byte
	seedHashSalt     [32]byte

	// privPassphraseSalt and hashedPrivPassphrase allow for the secure
	// detection of a correct passphrase on manager unlock when the
	// manager is already unlocked.  The hash is zeroed each lock.
	privPassphraseSalt   [saltSize]byte
	hashedPrivPassphrase [sha512.Size]byte
}

// lock performs a best try effort to remove and zero all secret keys associated
// with the seed manager.
//
// This function MUST be called with the manager lock held for writes.
func (m *Manager) lock() {
	m.cryptoKeySeed.Zero()
	m.masterKeyPriv.Zero()

	// Zero the hashed passphrase.
	zero.Bytea64(&m.hashedPrivPassphrase)

	m.locked = true
}

// Close cleanly shuts down the manager.  It makes a best try effort to remove
// and zero all private key material associated with the manager from memory.
func (m *Manager) Close() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return
	}

	m.lock()
	m.closed = true
}

// Birthday returns the time the account was created.
func (m *Manager) Birthday() time.Time {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.birthday
}

// IsLocked returns whether or not the manager is locked.  When it is unlocked,
// the decryption key needed to decrypt the root seed is in memory.
func (m *Manager) IsLocked() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.locked
}

// Lock performs a best try effort to remove and zero all secret keys associated
// with the seed manager.
func (m *Manager) Lock() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return managerError(ErrClosed, errClosed, nil)
	}

	// Error on attempt to lock an already locked manager.
	if m.locked {
		return managerError(ErrLocked, errLocked, nil)
	}

	m.lock()
	return nil
}

// Unlock derives the master private key from the specified passphrase.  An
// invalid passphrase will return an error.  Otherwise, the derived secret key
// is stored in memory until the manager is locked.  Any failures that occur
// during this function will result in the manager being locked, even if it
// was already unlocked prior to calling this function.
func (m *Manager) Unlock(passphrase []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return managerError(ErrClosed, errClosed, nil)
	}

	// Avoid actually unlocking if the manager is already unlocked
	// and the passphrases match.
	if !m.locked {
		saltedPassphrase := append(m.privPassphraseSalt[:],
			passphrase...)
		hashedPassphrase := sha512.Sum512(saltedPassphrase)
		zero.Bytes(saltedPassphrase)
		if hashedPassphrase != m.hashedPrivPassphrase {
			m.lock()
			str := "invalid passphrase for master private key"
			return managerError(ErrWrongPassphrase, str, nil)
		}
		return nil
	}

	// Derive the master private key using the provided passphrase.
	if err := m.masterKeyPriv.DeriveKey(&passphrase); err != nil {
		m.lock()
		if err == snacl.ErrInvalidPassword {
			str := "invalid passphrase for master private key"
			return managerError(ErrWrongPassphrase, str, nil)
		}

		str := "failed to derive master private key"
		return managerError(ErrCrypto, str, err)
	}

	// Use the master private key to decrypt the crypto seed key.
	decryptedKey, err := m.masterKeyPriv.Decrypt(m.cryptoKeySeedEncrypted)
	if err != nil {
		m.lock()
		str := "failed to decrypt crypto seed key"
		return managerError(ErrCrypto, str, err)
	}
	m.cryptoKeySeed.CopyBytes(decryptedKey)
	zero.Bytes(decryptedKey)

	m.locked = false
	saltedPassphrase := append(m.privPassphraseSalt[:], passphrase...)
	m.hashedPrivPassphrase = sha512.Sum512(saltedPassphrase)
	zero.Bytes(saltedPassphrase)

	log.Debugf("Seed manager unlocked")
	return nil
}

// RootSeed returns the decrypted root seed.  The manager must be unlocked.
// The caller owns the returned slice and should zero it when done.
func (m *Manager) RootSeed() ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if m.closed {
		return nil, managerError(ErrClosed, errClosed, nil)
	}
	if m.locked {
		return nil, managerError(ErrLocked, errLocked, nil)
	}

	seed, err := m.cryptoKeySeed.Decrypt(m.seedEncrypted)
	if err != nil {
		return nil, managerError(ErrCrypto, "failed to decrypt root seed", err)
	}
	return seed, nil
}

// deriveSeedKey derives a temporary copy of the crypto seed key from the
// passphrase without touching the lock state of the manager.  The returned
// key must be zeroed by the caller.
//
// This function MUST be called with the manager lock held for reads.
func (m *Manager) deriveSeedKey(passphrase []byte) (EncryptorDecryptor, error) {
	if m.closed {
		return nil, managerError(ErrClosed, errClosed, nil)
	}

	secretKey := snacl.SecretKey{Key: &snacl.CryptoKey{}}
	secretKey.Parameters = m.masterKeyPriv.Parameters
	if err := secretKey.DeriveKey(&passphrase); err != nil {
		if err == snacl.ErrInvalidPassword {
			str := "invalid passphrase for master private key"
			return nil, managerError(ErrWrongPassphrase, str, nil)
		}

		str := "failed to derive master private key"
		return nil, managerError(ErrCrypto, str, err)
	}
	defer secretKey.Zero()

	decryptedKey, err := secretKey.Decrypt(m.cryptoKeySeedEncrypted)
	if err != nil {
		str := "failed to decrypt crypto seed key"
		return nil, managerError(ErrCrypto, str, err)
	}
	key := &cryptoKey{}
	key.CopyBytes(decryptedKey)
	zero.Bytes(decryptedKey)
	return key, nil
}

// LoadRootSeed decrypts the root seed with the passphrase.  It does not change
// whether the manager is locked.
func (m *Manager) LoadRootSeed(passphrase []byte) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	key, err := m.deriveSeedKey(passphrase)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	seed, err := key.Decrypt(m.seedEncrypted)
	if err != nil {
		return nil, managerError(ErrCrypto, "failed to decrypt root seed", err)
	}
	return seed, nil
}

// VerifyPassword returns nil when the passphrase opens the stored account.
func (m *Manager) VerifyPassword(passphrase []byte) error {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	key, err := m.deriveSeedKey(passphrase)
	if err != nil {
		return err
	}
	key.Zero()
	return nil
}

// RecoveryPhrase returns the 12 word recovery phrase of the stored account.
func (m *Manager) RecoveryPhrase(passphrase []byte) (string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	key, err := m.deriveSeedKey(passphrase)
	if err != nil {
		return "", err
	}
	defer key.Zero()

	entropy, err := key.Decrypt(m.entropyEncrypted)
	if err != nil {
		str := "failed to decrypt mnemonic entropy"
		return "", managerError(ErrCrypto, str, err)
	}
	defer zero.Bytes(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", managerError(ErrCrypto, "failed to encode mnemonic", err)
	}
	return phrase, nil
}

// ChangePassphrase re-seals the crypto seed key under a master key derived
// from newPassphrase.  The new passphrase keys are derived using the scrypt
// parameters in the options, so changing the passphrase may be used to bump
// the computational difficulty needed to brute force the passphrase.
func (m *Manager) ChangePassphrase(oldPassphrase, newPassphrase []byte,
	config *ScryptOptions) error {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	// Ensure the provided old passphrase is correct.  This check is done
	// using a copy of the master key to ensure the current state is not
	// altered.
	key, err := m.deriveSeedKey(oldPassphrase)
	if err != nil {
		return err
	}
	defer key.Zero()

	newMasterKey, err := newSecretKey(&newPassphrase, config)
	if err != nil {
		str := "failed to create new master private key"
		return managerError(ErrCrypto, str, err)
	}
	newKeyParams := newMasterKey.Marshal()

	encKey, err := newMasterKey.Encrypt(key.Bytes())
	if err != nil {
		newMasterKey.Zero()
		str := "failed to encrypt crypto seed key"
		return managerError(ErrCrypto, str, err)
	}

	err = m.db.Update(func(tx *bolt.Tx) error {
		return putMasterKeyParams(tx.Bucket(namespaceKey), newKeyParams, encKey)
	})
	if err != nil {
		newMasterKey.Zero()
		return maybeConvertDbError(err)
	}

	// Now that the db has been successfully updated, swap the new master
	// key in.  When the manager is unlocked the passphrase hash is
	// refreshed so a later Unlock with the new passphrase short-circuits.
	m.cryptoKeySeedEncrypted = encKey
	m.masterKeyPriv.Zero()
	if m.locked {
		newMasterKey.Zero()
	} else {
		saltedPassphrase := append(m.privPassphraseSalt[:],
			newPassphrase...)
		m.hashedPrivPassphrase = sha512.Sum512(saltedPassphrase)
		zero.Bytes(saltedPassphrase)
	}
	m.masterKeyPriv = newMasterKey

	log.Infof("Account password changed")
	return nil
}

// ResetPassphrase replaces the account password using the recovery phrase in
// place of the old password.  The phrase must reproduce the stored root seed.
// The manager is locked afterwards.
func (m *Manager) ResetPassphrase(phrase string, newPassphrase []byte,
	config *ScryptOptions) error {

	seed, err := SeedFromMnemonic(phrase)
	if err != nil {
		return err
	}
	defer zero.Bytes(seed)

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return managerError(ErrClosed, errClosed, nil)
	}

	fp := seedFingerprint(&m.seedHashSalt, seed)
	if subtle.ConstantTimeCompare(fp[:], m.seedHash[:]) != 1 {
		str := "recovery phrase does not match the stored account"
		return managerError(ErrWrongPassphrase, str, nil)
	}

	row, masterKey, seedKey, err := sealAccount(phrase, seed, newPassphrase, config)
	if err != nil {
		return err
	}
	defer seedKey.Zero()

	err = m.db.Update(func(tx *bolt.Tx) error {
		return putSeedRow(tx.Bucket(namespaceKey), row)
	})
	if err != nil {
		masterKey.Zero()
		return maybeConvertDbError(err)
	}

	m.lock()
	masterKey.Zero()
	m.masterKeyPriv = masterKey
	m.cryptoKeySeedEncrypted = row.cryptoKeySeedEncrypted
	m.seedEncrypted = row.seedEncrypted
	m.entropyEncrypted = row.entropyEncrypted
	m.seedHash = row.seedHash
	m.seedHashSalt = row.seedHashSalt

	log.Infof("Account password reset from recovery phrase")
	return nil
}

// sealAccount derives fresh keys for the passphrase and seals the seed and the
// phrase entropy under them.  The returned keys are live and must be zeroed by
// the caller.
func sealAccount(phrase string, seed, passphrase []byte,
	config *ScryptOptions) (*dbSeedRow, *snacl.SecretKey, EncryptorDecryptor, error) {

	entropy, err := mnemonicEntropy(phrase)
	if err != nil {
		return nil, nil, nil, err
	}
	defer zero.Bytes(entropy)

	masterKeyPriv, err := newSecretKey(&passphrase, config)
	if err != nil {
		str := "failed to master private key"
		return nil, nil, nil, managerError(ErrCrypto, str, err)
	}

	cryptoKeySeed, err := newCryptoKey()
	if err != nil {
		masterKeyPriv.Zero()
		str := "failed to generate crypto seed key"
		return nil, nil, nil, managerError(ErrCrypto, str, err)
	}

	fail := func(str string, err error) (*dbSeedRow, *snacl.SecretKey,
		EncryptorDecryptor, error) {

		masterKeyPriv.Zero()
		cryptoKeySeed.Zero()
		return nil, nil, nil, managerError(ErrCrypto, str, err)
	}

	row := &dbSeedRow{masterKeyPrivParams: masterKeyPriv.Marshal()}
	row.cryptoKeySeedEncrypted, err = masterKeyPriv.Encrypt(cryptoKeySeed.Bytes())
	if err != nil {
		return fail("failed to encrypt crypto seed key", err)
	}
	row.seedEncrypted, err = cryptoKeySeed.Encrypt(seed)
	if err != nil {
		return fail("failed to encrypt root seed", err)
	}
	row.entropyEncrypted, err = cryptoKeySeed.Encrypt(entropy)
	if err != nil {
		return fail("failed to encrypt mnemonic entropy", err)
	}
	if _, err := io.ReadFull(rand.Reader, row.seedHashSalt[:]); err != nil {
		return fail("failed to read random source for seed salt", err)
	}
	row.seedHash = seedFingerprint(&row.seedHashSalt, seed)

	return row, masterKeyPriv, cryptoKeySeed, nil
}

// newManager returns a new locked seed manager with the given parameters.
func newManager(db *bolt.DB, masterKeyPriv *snacl.SecretKey, row *dbSeedRow,
	birthday time.Time, privPassphraseSalt [saltSize]byte) *Manager {

	return &Manager{
		db:                     db,
		birthday:               birthday,
		locked:                 true,
		masterKeyPriv:          masterKeyPriv,
		cryptoKeySeedEncrypted: row.cryptoKeySeedEncrypted,
		cryptoKeySeed:          &cryptoKey{},
		seedEncrypted:          row.seedEncrypted,
		entropyEncrypted:       row.entropyEncrypted,
		seedHash:               row.seedHash,
		seedHashSalt:           row.seedHashSalt,
		privPassphraseSalt:     privPassphraseSalt,
	}
}

// loadManager returns a new seed manager that results from loading it from
// the passed opened database.
func loadManager(db *bolt.DB, ns *bolt.Bucket) (*Manager, error) {
	// Verify the version is neither too old or too new.
	version, err := fetchManagerVersion(ns)
	if err != nil {
		str := "failed to fetch version for update"
		return nil, managerError(ErrDatabase, str, err)
	}
	if version < latestMgrVersion {
		str := "database upgrade required"
		return nil, managerError(ErrUpgrade, str, nil)
	} else if version > latestMgrVersion {
		str := "database version is greater than latest understood version"
		return nil, managerError(ErrUpgrade, str, nil)
	}

	row, err := fetchSeedRow(ns)
	if err != nil {
		return nil, maybeConvertDbError(err)
	}

	birthday, err := fetchBirthday(ns)
	if err != nil {
		return nil, maybeConvertDbError(err)
	}

	// When not a watching-only manager, set the master private key params,
	// but don't derive it now since the manager starts off locked.
	var masterKeyPriv snacl.SecretKey
	err = masterKeyPriv.Unmarshal(row.masterKeyPrivParams)
	if err != nil {
		str := "failed to unmarshal master private key"
		return nil, managerError(ErrCrypto, str, err)
	}

	// Generate private passphrase salt.
	var privPassphraseSalt [saltSize]byte
	_, err = rand.Read(privPassphraseSalt[:])
	if err != nil {
		str := "failed to read random source for passphrase salt"
		return nil, managerError(ErrCrypto, str, err)
	}

	return newManager(db, &masterKeyPriv, row, birthday, privPassphraseSalt), nil
}

// Exists returns whether an account has been stored in db.
func Exists(db *bolt.DB) bool {
	var exists bool
	_ = db.View(func(tx *bolt.Tx) error {
		exists = managerExists(tx.Bucket(namespaceKey))
		return nil
	})
	return exists
}

// Open loads an existing seed manager from the given database.  The returned
// manager is locked.
//
// If an account has not been created, ErrNoExist is returned.
func Open(db *bolt.DB) (*Manager, error) {
	var mgr *Manager
	err := db.View(func(tx *bolt.Tx) error {
		ns := tx.Bucket(namespaceKey)
		if !managerExists(ns) {
			return managerError(ErrNoExist, errNoAccount, nil)
		}

		var err error
		mgr, err = loadManager(db, ns)
		return err
	})
	if err != nil {
		return nil, maybeConvertDbError(err)
	}
	return mgr, nil
}

// Create seals the root seed of the recovery phrase under a key derived from
// the passphrase and stores it in db.  It is used both for brand new accounts,
// with a phrase from GenerateMnemonic, and for accounts recovered from a
// phrase the user already owns.
//
// ErrAlreadyExists is returned if an account is already stored.
func Create(db *bolt.DB, passphrase []byte, phrase string,
	config *ScryptOptions, birthday time.Time) error {

	if Exists(db) {
		return managerError(ErrAlreadyExists, errAlreadyExists, nil)
	}

	seed, err := SeedFromMnemonic(phrase)
	if err != nil {
		return err
	}
	defer zero.Bytes(seed)

	row, masterKeyPriv, cryptoKeySeed, err := sealAccount(
		phrase, seed, passphrase, config,
	)
	if err != nil {
		return err
	}
	defer masterKeyPriv.Zero()
	defer cryptoKeySeed.Zero()

	err = db.Update(func(tx *bolt.Tx) error {
		ns, err := tx.CreateBucketIfNotExists(namespaceKey)
		if err != nil {
			str := "failed to create seed manager namespace"
			return managerError(ErrDatabase, str, err)
		}
		if managerExists(ns) {
			return managerError(ErrAlreadyExists, errAlreadyExists, nil)
		}
		if err := createManagerNS(ns, birthday); err != nil {
			return err
		}
		if err := putSeedRow(ns, row); err != nil {
			return err
		}
		return putBirthday(ns, birthday)
	})
	if err != nil {
		return maybeConvertDbError(err)
	}

	log.Infof("Created account with birthday %v", birthday)
	return nil
}
