package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Manta-Network/manta-signer/internal/cfgutil"
	"github.com/Manta-Network/manta-signer/internal/prompt"
	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/lightningnetwork/lnd/clock"
	bolt "go.etcd.io/bbolt"
)

// errNoAccount is returned when the daemon is started before an account has
// been created.
var errNoAccount = errors.New("no account has been created, run with " +
	"--create or --recover first")

// scryptOptions returns the scrypt parameters new passwords are sealed with.
func scryptOptions(cfg *config) *seedmgr.ScryptOptions {
	if cfg.FastScrypt {
		return &seedmgr.FastScryptOptions
	}
	return &seedmgr.DefaultScryptOptions
}

// openDB opens the signer database, creating the app data directory when
// needed.  Only the create and recover flows may start a new database.
func openDB(cfg *config) (*bolt.DB, error) {
	if err := checkCreateDir(cfg.AppDataDir.Value); err != nil {
		return nil, err
	}
	exists, err := cfgutil.FileExists(cfg.dbPath())
	if err != nil {
		return nil, err
	}
	if !exists && !cfg.Create && !cfg.Recover {
		return nil, errNoAccount
	}
	return bolt.Open(cfg.dbPath(), 0600, &bolt.Options{Timeout: time.Second})
}

// runAccountSetup runs the setup flow selected in cfg.  It returns false when
// no flow was selected.  New accounts take their birthday from clk.
func runAccountSetup(cfg *config, db *bolt.DB, clk clock.Clock) (bool, error) {
	reader := bufio.NewReader(os.Stdin)
	opts := scryptOptions(cfg)

	switch {
	case cfg.Create:
		return true, createAccount(db, reader, opts, clk)
	case cfg.Recover:
		return true, recoverAccount(db, reader, opts, clk)
	case cfg.ChangePass:
		return true, changePassword(db, opts)
	case cfg.ResetPass:
		return true, resetPassword(db, reader, opts)
	case cfg.ShowPhrase:
		return true, showPhrase(db)
	}
	return false, nil
}

// createAccount generates a new recovery phrase, shows it to the user and
// stores the root seed it derives under a new password.
func createAccount(db *bolt.DB, reader *bufio.Reader, opts *seedmgr.ScryptOptions,
	clk clock.Clock) error {

	if seedmgr.Exists(db) {
		return errors.New("an account already exists")
	}

	pass, err := prompt.NewPassphrase()
	if err != nil {
		return err
	}
	defer zero.Bytes(pass)

	phrase, err := seedmgr.GenerateMnemonic()
	if err != nil {
		return err
	}
	if err := prompt.ShowMnemonic(reader, phrase); err != nil {
		return err
	}

	fmt.Println("Creating the account...")
	if err := storeAccount(db, pass, phrase, opts, clk); err != nil {
		return err
	}
	fmt.Println("The account has been created successfully.")
	return nil
}

// recoverAccount stores the root seed of a phrase the user already owns.
func recoverAccount(db *bolt.DB, reader *bufio.Reader, opts *seedmgr.ScryptOptions,
	clk clock.Clock) error {

	if seedmgr.Exists(db) {
		return errors.New("an account already exists")
	}

	phrase, err := prompt.Mnemonic(reader)
	if err != nil {
		return err
	}
	pass, err := prompt.NewPassphrase()
	if err != nil {
		return err
	}
	defer zero.Bytes(pass)

	fmt.Println("Recovering the account...")
	if err := storeAccount(db, pass, phrase, opts, clk); err != nil {
		return err
	}
	fmt.Println("The account has been recovered successfully.")
	return nil
}

// storeAccount seals the root seed of phrase under pass, born now on clk.
func storeAccount(db *bolt.DB, pass []byte, phrase string,
	opts *seedmgr.ScryptOptions, clk clock.Clock) error {

	return seedmgr.Create(db, pass, phrase, opts, clk.Now())
}

func changePassword(db *bolt.DB, opts *seedmgr.ScryptOptions) error {
	mgr, err := seedmgr.Open(db)
	if err != nil {
		return err
	}
	defer mgr.Close()

	for {
		old, err := prompt.Passphrase("Enter the current password")
		if err != nil {
			return err
		}
		err = mgr.VerifyPassword(old)
		if seedmgr.IsError(err, seedmgr.ErrWrongPassphrase) {
			zero.Bytes(old)
			fmt.Println("Incorrect password")
			continue
		}
		if err != nil {
			zero.Bytes(old)
			return err
		}

		pass, err := prompt.NewPassphrase()
		if err != nil {
			zero.Bytes(old)
			return err
		}
		err = mgr.ChangePassphrase(old, pass, opts)
		zero.Bytes(old)
		zero.Bytes(pass)
		if err != nil {
			return err
		}
		fmt.Println("The password has been changed.")
		return nil
	}
}

// resetPassword replaces a forgotten password.  The recovery phrase proves
// ownership of the account.
func resetPassword(db *bolt.DB, reader *bufio.Reader, opts *seedmgr.ScryptOptions) error {
	mgr, err := seedmgr.Open(db)
	if err != nil {
		return err
	}
	defer mgr.Close()

	phrase, err := prompt.Mnemonic(reader)
	if err != nil {
		return err
	}
	pass, err := prompt.NewPassphrase()
	if err != nil {
		return err
	}
	defer zero.Bytes(pass)

	err = mgr.ResetPassphrase(phrase, pass, opts)
	if seedmgr.IsError(err, seedmgr.ErrWrongPassphrase) {
		return errors.New("the recovery phrase does not belong to this account")
	}
	if err != nil {
		return err
	}
	fmt.Println("The password has been reset.")
	return nil
}

func showPhrase(db *bolt.DB) error {
	mgr, err := seedmgr.Open(db)
	if err != nil {
		return err
	}
	defer mgr.Close()

	for {
		pass, err := prompt.Passphrase("Enter the password")
		if err != nil {
			return err
		}
		phrase, err := mgr.RecoveryPhrase(pass)
		zero.Bytes(pass)
		if seedmgr.IsError(err, seedmgr.ErrWrongPassphrase) {
			fmt.Println("Incorrect password")
			continue
		}
		if err != nil {
			return err
		}
		fmt.Println(phrase)
		return nil
	}
}

// checkCreateDir checks that the path exists and is a directory.
// If path does not exist, it is created.
func checkCreateDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Attempt data directory creation
			if err = os.MkdirAll(path, 0700); err != nil {
				return fmt.Errorf("cannot create directory: %s", err)
			}
		} else {
			return fmt.Errorf("error checking directory: %s", err)
		}
	} else {
		if !fi.IsDir() {
			return fmt.Errorf("path '%s' is not a directory", path)
		}
	}

	return nil
}
