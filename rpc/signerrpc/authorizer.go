package signerrpc

import (
	"context"

	"github.com/Manta-Network/manta-signer/seedmgr"
)

// Authorizer asks the user for the password that unlocks the root seed.
//
// Wake presents the prompt describing the request being authorized.
// Password blocks until the user enters a password, returning ErrRejected
// when the user declines instead.  It may be called several times after a
// single Wake when the entered password is wrong.  Success is called once the
// password has been accepted.
type Authorizer interface {
	Wake(ctx context.Context, p *Prompt) error
	Password(ctx context.Context) ([]byte, error)
	Success(ctx context.Context) error
}

// SeedLoader decrypts the root seed with a password without otherwise
// changing its state.
type SeedLoader interface {
	LoadRootSeed(passphrase []byte) ([]byte, error)
}

var _ SeedLoader = (*seedmgr.Manager)(nil)
