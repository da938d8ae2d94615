package signerrpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/awnumar/memguard"
	"github.com/lightningnetwork/lnd/clock"
)

// DefaultRetryDelay is how long the signer waits before asking again after
// a wrong password.
const DefaultRetryDelay = time.Second

// rootSeedState holds the decrypted root seed once the user has unlocked the
// signer.  The mutex serializes prompts so the user authorizes one request
// at a time.
type rootSeedState struct {
	mtx        sync.Mutex
	loader     SeedLoader
	authorizer Authorizer
	clock      clock.Clock
	retryDelay time.Duration

	// seed is nil until the first successful unlock.
	seed *memguard.Enclave
}

func newRootSeedState(loader SeedLoader, authorizer Authorizer,
	clk clock.Clock, retryDelay time.Duration) *rootSeedState {

	return &rootSeedState{
		loader:     loader,
		authorizer: authorizer,
		clock:      clk,
		retryDelay: retryDelay,
	}
}

// loadSeed returns the seed the password decrypts, or nil when it does not.
func (s *rootSeedState) loadSeed(password []byte) []byte {
	seed, err := s.loader.LoadRootSeed(password)
	switch {
	case err == nil:
		return seed
	case seedmgr.IsError(err, seedmgr.ErrWrongPassphrase):
		log.Debugf("Wrong password entered")
	default:
		log.Errorf("Unable to load root seed: %v", err)
	}
	return nil
}

// delayRetry waits the retry delay on the state's clock.
func (s *rootSeedState) delayRetry(ctx context.Context) error {
	select {
	case <-s.clock.TickAfter(s.retryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// success tells the authorizer the password was accepted.  A failure to do
// so does not undo the unlock.
func (s *rootSeedState) success(ctx context.Context) {
	if err := s.authorizer.Success(ctx); err != nil {
		log.Warnf("Unable to notify authorizer of success: %v", err)
	}
}

// awaitPassword asks for passwords until one decrypts a seed accept agrees
// with.  A declined prompt ends the loop with ErrRejected.
func (s *rootSeedState) awaitPassword(ctx context.Context,
	accept func(seed []byte) bool) ([]byte, error) {

	for {
		password, err := s.authorizer.Password(ctx)
		if err != nil {
			return nil, err
		}
		seed := s.loadSeed(password)
		zero.Bytes(password)

		if seed != nil {
			if accept == nil || accept(seed) {
				s.success(ctx)
				return seed, nil
			}
			zero.Bytes(seed)
		}

		if err := s.delayRetry(ctx); err != nil {
			return nil, err
		}
	}
}

// unlock asks for the starting password until it decrypts the root seed.
// Unlike a request prompt, declining only asks again.
func (s *rootSeedState) unlock(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for {
		seed, err := s.awaitPassword(ctx, nil)
		if err == nil {
			s.seed = memguard.NewEnclave(seed)
			return nil
		}
		if !errors.Is(err, ErrRejected) {
			return err
		}
		if err := s.delayRetry(ctx); err != nil {
			return err
		}
	}
}

// getRootSeed returns the unlocked root seed, prompting for the password
// only when the signer has not been unlocked yet.  The caller must destroy
// the returned buffer.
func (s *rootSeedState) getRootSeed(ctx context.Context,
	p *Prompt) (*memguard.LockedBuffer, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.ensureSeed(ctx, p); err != nil {
		return nil, err
	}
	return s.seed.Open()
}

// checkRootSeed always prompts.  The entered password must decrypt the same
// seed the signer was unlocked with.  The caller must destroy the returned
// buffer.
func (s *rootSeedState) checkRootSeed(ctx context.Context,
	p *Prompt) (*memguard.LockedBuffer, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.seed == nil {
		if err := s.ensureSeed(ctx, p); err != nil {
			return nil, err
		}
		return s.seed.Open()
	}

	current, err := s.seed.Open()
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Wake(ctx, p); err != nil {
		current.Destroy()
		return nil, err
	}
	seed, err := s.awaitPassword(ctx, func(seed []byte) bool {
		return subtle.ConstantTimeCompare(seed, current.Bytes()) == 1
	})
	if err != nil {
		current.Destroy()
		return nil, err
	}
	zero.Bytes(seed)
	return current, nil
}

// ensureSeed prompts for the password when no seed is held.  The mutex must
// be held.
func (s *rootSeedState) ensureSeed(ctx context.Context, p *Prompt) error {
	if s.seed != nil {
		return nil
	}
	if err := s.authorizer.Wake(ctx, p); err != nil {
		return err
	}
	seed, err := s.awaitPassword(ctx, nil)
	if err != nil {
		return err
	}
	// NewEnclave wipes seed.
	s.seed = memguard.NewEnclave(seed)
	return nil
}

// isUnlocked reports whether a seed is held.
func (s *rootSeedState) isUnlocked() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.seed != nil
}
