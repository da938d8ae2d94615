package signerrpc

import (
	"fmt"

	"github.com/Manta-Network/manta-signer/shielded"
)

// PromptType tags a Prompt with the operation it asks the user to authorize.
type PromptType string

// The prompt types shown to the user.
const (
	PromptRecoverAccount        PromptType = "RecoverAccount"
	PromptDeriveShieldedAddress PromptType = "DeriveShieldedAddress"
	PromptGenerateAsset         PromptType = "GenerateAsset"
	PromptMint                  PromptType = "Mint"
	PromptPrivateTransfer       PromptType = "PrivateTransfer"
	PromptReclaim               PromptType = "Reclaim"
)

// Transaction types of a batch summary.
const (
	TxTypePrivateTransfer = "Private transfer"
	TxTypeWithdraw        = "Withdraw"

	// reclaimRecipient is shown as the recipient of a withdraw.
	reclaimRecipient = "your public wallet"
)

// Prompt is what an Authorizer shows the user before asking for the
// password.  Only the transaction prompts carry the fields after Type.
type Prompt struct {
	Type           PromptType `json:"type"`
	Recipient      string     `json:"recipient,omitempty"`
	Amount         string     `json:"amount,omitempty"`
	CurrencySymbol string     `json:"currency_symbol,omitempty"`
}

// NewPrompt returns a prompt of a type that carries no transaction details.
func NewPrompt(t PromptType) *Prompt {
	return &Prompt{Type: t}
}

// PrivateTransferPrompt summarizes a private transfer batch.
func PrivateTransferPrompt(p *shielded.GeneratePrivateTransferBatchParams) *Prompt {
	return &Prompt{
		Type:           PromptPrivateTransfer,
		Recipient:      shielded.PrivateTransferBatchRecipient(p),
		Amount:         shielded.PrivateTransferBatchValue(p),
		CurrencySymbol: shielded.PrivateTransferBatchCurrencySymbol(p),
	}
}

// ReclaimPrompt summarizes a reclaim batch.
func ReclaimPrompt(p *shielded.GenerateReclaimBatchParams) *Prompt {
	return &Prompt{
		Type:           PromptReclaim,
		Amount:         shielded.ReclaimBatchValue(p),
		CurrencySymbol: shielded.ReclaimBatchCurrencySymbol(p),
	}
}

// Summary is the transaction batch summary a UI displays for a sensitive
// prompt.
type Summary struct {
	TransactionType string `json:"transaction_type"`
	Value           string `json:"value"`
	Denomination    string `json:"denomination"`
	Recipient       string `json:"recipient"`
}

// Summary returns the batch summary of a transaction prompt.  The second
// return is false for prompts that do not describe a transaction.
func (p *Prompt) Summary() (Summary, bool) {
	switch p.Type {
	case PromptPrivateTransfer:
		return Summary{
			TransactionType: TxTypePrivateTransfer,
			Value:           p.Amount,
			Denomination:    p.CurrencySymbol,
			Recipient:       p.Recipient,
		}, true
	case PromptReclaim:
		return Summary{
			TransactionType: TxTypeWithdraw,
			Value:           p.Amount,
			Denomination:    p.CurrencySymbol,
			Recipient:       reclaimRecipient,
		}, true
	}
	return Summary{}, false
}

// IsSensitive reports whether the prompt re-authorizes an unlocked signer.
func (p *Prompt) IsSensitive() bool {
	return p.Type == PromptPrivateTransfer || p.Type == PromptReclaim
}

// String renders the prompt for a terminal.
func (p *Prompt) String() string {
	s, ok := p.Summary()
	if !ok {
		return fmt.Sprintf("Unlock the signer to %s", describe(p.Type))
	}
	return fmt.Sprintf("%s of %s %s to %s", s.TransactionType, s.Value,
		s.Denomination, s.Recipient)
}

func describe(t PromptType) string {
	switch t {
	case PromptRecoverAccount:
		return "recover your account"
	case PromptDeriveShieldedAddress:
		return "derive a shielded address"
	case PromptGenerateAsset:
		return "generate an asset"
	case PromptMint:
		return "mint an asset"
	default:
		return string(t)
	}
}
