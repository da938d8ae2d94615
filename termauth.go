package main

import (
	"context"
	"fmt"

	"github.com/Manta-Network/manta-signer/internal/prompt"
	"github.com/Manta-Network/manta-signer/rpc/signerrpc"
)

// terminalAuthorizer authorizes requests on the terminal the daemon runs in.
type terminalAuthorizer struct {
	readPassword func(prefix string) ([]byte, error)
}

func newTerminalAuthorizer() *terminalAuthorizer {
	return &terminalAuthorizer{readPassword: prompt.PassphraseOrDecline}
}

func (a *terminalAuthorizer) Wake(_ context.Context, p *signerrpc.Prompt) error {
	fmt.Println()
	s, ok := p.Summary()
	if !ok {
		fmt.Println(p)
		return nil
	}
	fmt.Println("Authorize transaction")
	fmt.Printf("  Type:      %s\n", s.TransactionType)
	fmt.Printf("  Amount:    %s %s\n", s.Value, s.Denomination)
	fmt.Printf("  Recipient: %s\n", s.Recipient)
	return nil
}

// Password reads the password without echo.  An empty password declines.
// The terminal read itself can not be interrupted, so ctx is only checked
// around it.
func (a *terminalAuthorizer) Password(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pass, err := a.readPassword("Enter your signer password")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pass == nil {
		fmt.Println("Declined.")
		return nil, signerrpc.ErrRejected
	}
	return pass, nil
}

func (a *terminalAuthorizer) Success(context.Context) error {
	fmt.Println("Authorized.")
	return nil
}

var _ signerrpc.Authorizer = (*terminalAuthorizer)(nil)
