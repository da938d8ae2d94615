package shielded

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidParams is wrapped by every Validate failure.
var ErrInvalidParams = errors.New("invalid parameters")

func invalidParams(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// addValues returns a+b, or false on overflow.
func addValues(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// SenderParams names a note the signer owns and the shard it was posted to.
// A keypath may own many notes; Nonce picks one of them.
type SenderParams struct {
	Value   uint64  `json:"value"`
	KeyPath KeyPath `json:"keypath"`
	Nonce   Digest  `json:"nonce"`
	Shard   Shard   `json:"shard"`
}

// note identifies the spent note.  Two senders with the same note would
// reveal the same void number.
func (s *SenderParams) note() string {
	return s.KeyPath.String() + "#" + s.Nonce.String()
}

// spentNotes tracks the notes spent across a batch.
type spentNotes map[string]struct{}

func (n spentNotes) add(name string, s *SenderParams) error {
	id := s.note()
	if _, ok := n[id]; ok {
		return invalidParams("%s spends note %s of keypath %v twice", name,
			s.Nonce, s.KeyPath)
	}
	n[id] = struct{}{}
	return nil
}

func (n spentNotes) addTransfer(i int, p *GeneratePrivateTransferParams) error {
	if err := n.add(fmt.Sprintf("transfer %d sender 1", i), &p.Sender1); err != nil {
		return err
	}
	return n.add(fmt.Sprintf("transfer %d sender 2", i), &p.Sender2)
}

func (s *SenderParams) validate(name string) error {
	if len(s.KeyPath) == 0 {
		return invalidParams("%s keypath is empty", name)
	}
	if len(s.Shard) == 0 {
		return invalidParams("%s shard is empty", name)
	}
	if len(s.Shard) > ShardCapacity {
		return invalidParams("%s shard holds %d commitments, max %d", name,
			len(s.Shard), ShardCapacity)
	}
	return nil
}

// GeneratePrivateTransferParams spends two notes into a non-change output and
// a change output.
type GeneratePrivateTransferParams struct {
	Sender1 SenderParams `json:"sender_1"`
	Sender2 SenderParams `json:"sender_2"`

	NonChangeOutputValue uint64 `json:"non_change_output_value"`

	// NonChangeOutputKeyPath is set when the output stays with the signer,
	// which is every item of a batch except the last transfer.
	NonChangeOutputKeyPath *KeyPath `json:"non_change_output_keypath,omitempty"`

	ChangeOutputValue   uint64  `json:"change_output_value"`
	ChangeOutputKeyPath KeyPath `json:"change_output_keypath"`
}

// Validate checks that the transfer conserves value.
func (p *GeneratePrivateTransferParams) Validate() error {
	if err := p.Sender1.validate("sender 1"); err != nil {
		return err
	}
	if err := p.Sender2.validate("sender 2"); err != nil {
		return err
	}
	if p.Sender1.note() == p.Sender2.note() {
		return invalidParams("senders spend the same note of keypath %v",
			p.Sender1.KeyPath)
	}
	if len(p.ChangeOutputKeyPath) == 0 {
		return invalidParams("change output keypath is empty")
	}

	in, ok := addValues(p.Sender1.Value, p.Sender2.Value)
	if !ok {
		return invalidParams("sender values overflow")
	}
	out, ok := addValues(p.NonChangeOutputValue, p.ChangeOutputValue)
	if !ok {
		return invalidParams("output values overflow")
	}
	if in != out {
		return invalidParams("senders hold %d but outputs spend %d", in, out)
	}
	return nil
}

// GeneratePrivateTransferBatchParams is a chain of transfers that ends with a
// payment to ReceivingAddress.
type GeneratePrivateTransferBatchParams struct {
	AssetID                   AssetID                         `json:"asset_id"`
	ReceivingAddress          ShieldedAddress                 `json:"receiving_address"`
	PrivateTransferParamsList []GeneratePrivateTransferParams `json:"private_transfer_params_list"`
}

// Validate checks every transfer of the batch.  Only the last transfer may
// pay the receiving address, and no note is spent twice.
func (p *GeneratePrivateTransferBatchParams) Validate() error {
	if len(p.PrivateTransferParamsList) == 0 {
		return invalidParams("private transfer batch is empty")
	}
	if err := p.ReceivingAddress.Validate(); err != nil {
		return invalidParams("receiving address: %v", err)
	}
	spent := make(spentNotes)
	last := len(p.PrivateTransferParamsList) - 1
	for i := range p.PrivateTransferParamsList {
		item := &p.PrivateTransferParamsList[i]
		if err := item.Validate(); err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
		if i != last && item.NonChangeOutputKeyPath == nil {
			return invalidParams("transfer %d: non change output keypath "+
				"is required before the last transfer", i)
		}
		if err := spent.addTransfer(i, item); err != nil {
			return err
		}
	}
	return nil
}

// GenerateReclaimParams spends two notes, sends ReclaimValue to the public
// ledger and keeps the rest as change.
type GenerateReclaimParams struct {
	AssetID       AssetID      `json:"asset_id"`
	ReclaimValue  uint64       `json:"reclaim_value"`
	Input1        SenderParams `json:"input_1"`
	Input2        SenderParams `json:"input_2"`
	ChangeKeyPath KeyPath      `json:"change_keypath"`
}

// ChangeValue is the value left after the reclaim.
func (p *GenerateReclaimParams) ChangeValue() uint64 {
	return p.Input1.Value + p.Input2.Value - p.ReclaimValue
}

// Validate checks that the inputs cover the reclaimed value.
func (p *GenerateReclaimParams) Validate() error {
	if err := p.Input1.validate("input 1"); err != nil {
		return err
	}
	if err := p.Input2.validate("input 2"); err != nil {
		return err
	}
	if p.Input1.note() == p.Input2.note() {
		return invalidParams("inputs spend the same note of keypath %v",
			p.Input1.KeyPath)
	}
	if len(p.ChangeKeyPath) == 0 {
		return invalidParams("change keypath is empty")
	}
	in, ok := addValues(p.Input1.Value, p.Input2.Value)
	if !ok {
		return invalidParams("input values overflow")
	}
	if in < p.ReclaimValue {
		return invalidParams("inputs hold %d, cannot reclaim %d", in,
			p.ReclaimValue)
	}
	return nil
}

// GenerateReclaimBatchParams merges notes with private transfers to the
// signer's own keypaths and finishes with a reclaim.
type GenerateReclaimBatchParams struct {
	PrivateTransferParamsList []GeneratePrivateTransferParams `json:"private_transfer_params_list"`
	ReclaimParams             GenerateReclaimParams           `json:"reclaim_params"`
}

// Validate checks the transfers and the reclaim.  Every transfer must keep
// its non change output with the signer, and no note is spent twice.
func (p *GenerateReclaimBatchParams) Validate() error {
	spent := make(spentNotes)
	for i := range p.PrivateTransferParamsList {
		item := &p.PrivateTransferParamsList[i]
		if err := item.Validate(); err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
		if item.NonChangeOutputKeyPath == nil {
			return invalidParams("transfer %d: non change output keypath "+
				"is required in a reclaim batch", i)
		}
		if err := spent.addTransfer(i, item); err != nil {
			return err
		}
	}
	if err := p.ReclaimParams.Validate(); err != nil {
		return fmt.Errorf("reclaim: %w", err)
	}
	if err := spent.add("reclaim input 1", &p.ReclaimParams.Input1); err != nil {
		return err
	}
	return spent.add("reclaim input 2", &p.ReclaimParams.Input2)
}
