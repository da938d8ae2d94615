package seedmgr

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// EntropyBits is the entropy used for new accounts, which yields a 12
	// word recovery phrase.
	EntropyBits = 128

	// SeedSize is the size of the BIP0039 root seed.
	SeedSize = 64
)

// normalizePhrase collapses the whitespace of a user supplied recovery
// phrase and lower cases it.
func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// GenerateMnemonic returns a fresh 12 word recovery phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(EntropyBits)
	if err != nil {
		return "", managerError(ErrCrypto, "failed to read entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", managerError(ErrCrypto, "failed to encode mnemonic", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic validates the recovery phrase and returns its BIP0039 root
// seed.  The seed is always derived with an empty passphrase.
func SeedFromMnemonic(phrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalizePhrase(phrase), "")
	if err != nil {
		return nil, managerError(ErrInvalidMnemonic,
			"invalid recovery phrase", err)
	}
	return seed, nil
}

// mnemonicEntropy returns the entropy encoded by a validated phrase.
func mnemonicEntropy(phrase string) ([]byte, error) {
	entropy, err := bip39.EntropyFromMnemonic(normalizePhrase(phrase))
	if err != nil {
		return nil, managerError(ErrInvalidMnemonic,
			"invalid recovery phrase", err)
	}
	return entropy, nil
}
