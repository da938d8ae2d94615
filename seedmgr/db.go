package seedmgr

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// LatestMgrVersion is the most recent manager version.
	LatestMgrVersion uint32 = 1
)

var (
	// latestMgrVersion is the most recent manager version as a variable so
	// the tests can change it to force errors.
	latestMgrVersion = LatestMgrVersion
)

// Key names for various database fields.
var (
	// namespaceKey is the top level bucket every other bucket of the seed
	// manager lives under.
	namespaceKey = []byte("seedmgr")

	// Bucket names.
	mainBucketName = []byte("main")
	syncBucketName = []byte("sync")

	// Db related key names (main bucket).
	mgrVersionName    = []byte("mgrver")
	mgrCreateDateName = []byte("mgrcreated")

	// Crypto related key names (main bucket).
	masterPrivKeyName = []byte("mpriv")
	cryptoSeedKeyName = []byte("cseed")
	seedName          = []byte("seed")
	entropyName       = []byte("entropy")
	seedHashName      = []byte("seedhash")
	seedHashSaltName  = []byte("seedhashsalt")

	// Sync related key names (sync bucket).
	birthdayName = []byte("birthday")
)

// dbSeedRow houses the sealed account material stored in the main bucket.
type dbSeedRow struct {
	masterKeyPrivParams    []byte
	cryptoKeySeedEncrypted []byte
	seedEncrypted          []byte
	entropyEncrypted       []byte
	seedHash               [32]byte
	seedHashSalt           [32]byte
}

// uint32ToBytes converts a 32 bit unsigned integer into a 4-byte slice in
// little-endian order: 1 -> [1 0 0 0].
func uint32ToBytes(number uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, number)
	return buf
}

// uint64ToBytes converts a 64 bit unsigned integer into a 8-byte slice in
// little-endian order: 1 -> [1 0 0 0 0 0 0 0].
func uint64ToBytes(number uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, number)
	return buf
}

// copyBytes returns a copy of a value read from bolt, which is only valid for
// the life of the transaction.
func copyBytes(val []byte) []byte {
	if val == nil {
		return nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp
}

// fetchManagerVersion fetches the current manager version from the database.
func fetchManagerVersion(ns *bolt.Bucket) (uint32, error) {
	mainBucket := ns.Bucket(mainBucketName)
	verBytes := mainBucket.Get(mgrVersionName)
	if len(verBytes) != 4 {
		str := "required version number not stored in database"
		return 0, managerError(ErrDatabase, str, nil)
	}
	version := binary.LittleEndian.Uint32(verBytes)
	return version, nil
}

// putManagerVersion stores the provided version to the database.
func putManagerVersion(ns *bolt.Bucket, version uint32) error {
	bucket := ns.Bucket(mainBucketName)

	verBytes := uint32ToBytes(version)
	err := bucket.Put(mgrVersionName, verBytes)
	if err != nil {
		str := "failed to store version"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

// fetchSeedRow loads the master key parameters and every sealed value
// needed to recover the root seed.
func fetchSeedRow(ns *bolt.Bucket) (*dbSeedRow, error) {
	bucket := ns.Bucket(mainBucketName)

	required := []struct {
		key  []byte
		name string
	}{
		{masterPrivKeyName, "master private key parameters"},
		{cryptoSeedKeyName, "crypto seed key"},
		{seedName, "encrypted root seed"},
		{entropyName, "encrypted mnemonic entropy"},
		{seedHashName, "seed fingerprint"},
		{seedHashSaltName, "seed fingerprint salt"},
	}
	vals := make([][]byte, len(required))
	for i, r := range required {
		val := bucket.Get(r.key)
		if val == nil {
			str := "required " + r.name + " not stored in database"
			return nil, managerError(ErrDatabase, str, nil)
		}
		vals[i] = copyBytes(val)
	}

	if len(vals[4]) != 32 || len(vals[5]) != 32 {
		str := "malformed seed fingerprint stored in database"
		return nil, managerError(ErrDatabase, str, nil)
	}

	row := &dbSeedRow{
		masterKeyPrivParams:    vals[0],
		cryptoKeySeedEncrypted: vals[1],
		seedEncrypted:          vals[2],
		entropyEncrypted:       vals[3],
	}
	copy(row.seedHash[:], vals[4])
	copy(row.seedHashSalt[:], vals[5])
	return row, nil
}

// putSeedRow stores the sealed account material.  Every field is written, so
// a password change or reset replaces the row atomically within the caller's
// transaction.
func putSeedRow(ns *bolt.Bucket, row *dbSeedRow) error {
	bucket := ns.Bucket(mainBucketName)

	puts := []struct {
		key  []byte
		val  []byte
		name string
	}{
		{masterPrivKeyName, row.masterKeyPrivParams, "master private key parameters"},
		{cryptoSeedKeyName, row.cryptoKeySeedEncrypted, "crypto seed key"},
		{seedName, row.seedEncrypted, "encrypted root seed"},
		{entropyName, row.entropyEncrypted, "encrypted mnemonic entropy"},
		{seedHashName, row.seedHash[:], "seed fingerprint"},
		{seedHashSaltName, row.seedHashSalt[:], "seed fingerprint salt"},
	}
	for _, p := range puts {
		if err := bucket.Put(p.key, p.val); err != nil {
			str := "failed to store " + p.name
			return managerError(ErrDatabase, str, err)
		}
	}
	return nil
}

// putMasterKeyParams stores the master key parameters and the crypto seed
// key sealed by that master key.
func putMasterKeyParams(ns *bolt.Bucket, privParams, cryptoKeySeedEnc []byte) error {
	bucket := ns.Bucket(mainBucketName)

	if err := bucket.Put(masterPrivKeyName, privParams); err != nil {
		str := "failed to store master private key parameters"
		return managerError(ErrDatabase, str, err)
	}
	if err := bucket.Put(cryptoSeedKeyName, cryptoKeySeedEnc); err != nil {
		str := "failed to store crypto seed key"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

// fetchBirthday loads the manager's birthday timestamp from the database.
func fetchBirthday(ns *bolt.Bucket) (time.Time, error) {
	var t time.Time

	bucket := ns.Bucket(syncBucketName)
	birthdayTimestamp := bucket.Get(birthdayName)
	if len(birthdayTimestamp) != 8 {
		str := "malformed birthday stored in database"
		return t, managerError(ErrDatabase, str, nil)
	}

	t = time.Unix(int64(binary.BigEndian.Uint64(birthdayTimestamp)), 0)

	return t, nil
}

// putBirthday stores the provided birthday timestamp to the database.
func putBirthday(ns *bolt.Bucket, t time.Time) error {
	var birthdayTimestamp [8]byte
	binary.BigEndian.PutUint64(birthdayTimestamp[:], uint64(t.Unix()))

	bucket := ns.Bucket(syncBucketName)
	if err := bucket.Put(birthdayName, birthdayTimestamp[:]); err != nil {
		str := "failed to store birthday"
		return managerError(ErrDatabase, str, err)
	}

	return nil
}

// managerExists returns whether or not the manager has already been created
// in the given database namespace.
func managerExists(ns *bolt.Bucket) bool {
	if ns == nil {
		return false
	}
	mainBucket := ns.Bucket(mainBucketName)
	return mainBucket != nil
}

// createManagerNS creates the initial namespace structure needed for all of
// the manager data.  This includes things such as all of the buckets as well
// as the version and creation date.
func createManagerNS(ns *bolt.Bucket, now time.Time) error {
	mainBucket, err := ns.CreateBucket(mainBucketName)
	if err != nil {
		str := "failed to create main bucket"
		return managerError(ErrDatabase, str, err)
	}

	_, err = ns.CreateBucket(syncBucketName)
	if err != nil {
		str := "failed to create sync bucket"
		return managerError(ErrDatabase, str, err)
	}

	if err := putManagerVersion(ns, latestMgrVersion); err != nil {
		return err
	}

	err = mainBucket.Put(mgrCreateDateName, uint64ToBytes(uint64(now.Unix())))
	if err != nil {
		str := "failed to store database creation time"
		return managerError(ErrDatabase, str, err)
	}

	return nil
}
