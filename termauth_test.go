package main

import (
	"context"
	"testing"

	"github.com/Manta-Network/manta-signer/rpc/signerrpc"
	"github.com/stretchr/testify/require"
)

func TestTerminalAuthorizer(t *testing.T) {
	answers := [][]byte{[]byte("secret"), nil}
	a := &terminalAuthorizer{readPassword: func(string) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}}
	ctx := context.Background()

	require.NoError(t, a.Wake(ctx, &signerrpc.Prompt{
		Type:           signerrpc.PromptReclaim,
		Amount:         "1",
		CurrencySymbol: "DOT",
	}))
	pass, err := a.Password(ctx)
	require.NoError(t, err)
	require.Equal(t, "secret", string(pass))
	require.NoError(t, a.Success(ctx))

	_, err = a.Password(ctx)
	require.ErrorIs(t, err, signerrpc.ErrRejected)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.Password(canceled)
	require.ErrorIs(t, err, context.Canceled)
}
