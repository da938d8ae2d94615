package shielded

import (
	"errors"
	"fmt"
)

// DefaultGapLimit is the number of indexes scanned on each change level when
// the request does not name one.
const DefaultGapLimit = 20

// RecoverAccountParams lists the ledger receivers to scan for notes owned by
// an account.
type RecoverAccountParams struct {
	AssetID   AssetID             `json:"asset_id"`
	Account   uint32              `json:"account"`
	GapLimit  uint32              `json:"gap_limit"`
	Receivers []ProcessedReceiver `json:"receivers"`
}

// RecoveredAsset is a note found during recovery.
type RecoveredAsset struct {
	KeyPath    KeyPath `json:"keypath"`
	AssetID    AssetID `json:"asset_id"`
	Value      uint64  `json:"value"`
	Nonce      Digest  `json:"nonce"`
	Commitment Digest  `json:"commitment"`
	VoidNumber Digest  `json:"void_number"`
}

// RecoveredAccount is the set of notes owned by an account.
type RecoveredAccount struct {
	Assets []RecoveredAsset `json:"assets"`
}

// Balance sums the recovered value of assetID.
func (a *RecoveredAccount) Balance(assetID AssetID) uint64 {
	var total uint64
	for i := range a.Assets {
		if a.Assets[i].AssetID == assetID {
			total += a.Assets[i].Value
		}
	}
	return total
}

// RecoverAccount scans the external and internal keypaths of the account up
// to the gap limit and opens every receiver addressed to one of them.  A zero
// AssetID accepts notes of every asset.
func RecoverAccount(seed []byte, params *RecoverAccountParams) (*RecoveredAccount, error) {
	gap := params.GapLimit
	if gap == 0 {
		gap = DefaultGapLimit
	}

	// A keypath may hold many notes, but a receiver opens under one key
	// only, so it is claimed by the first key that opens it.
	claimed := make([]bool, len(params.Receivers))
	account := &RecoveredAccount{Assets: []RecoveredAsset{}}
	for _, change := range []uint32{ChangeExternal, ChangeInternal} {
		for index := uint32(0); index < gap; index++ {
			key, err := DeriveSpendingKey(seed, NewKeyPath(params.Account, change, index))
			if err != nil {
				return nil, err
			}
			found, err := scanReceivers(key, params, claimed)
			key.Zero()
			if err != nil {
				return nil, err
			}
			account.Assets = append(account.Assets, found...)
		}
	}

	log.Debugf("Recovered %d notes for account %d", len(account.Assets),
		params.Account)
	return account, nil
}

func scanReceivers(key *SpendingKey, params *RecoverAccountParams,
	claimed []bool) ([]RecoveredAsset, error) {

	var found []RecoveredAsset
	for i := range params.Receivers {
		if claimed[i] {
			continue
		}
		asset, err := OpenReceiver(key, &params.Receivers[i])
		switch {
		case errors.Is(err, ErrNotReceiver):
			continue
		case err != nil:
			return nil, fmt.Errorf("receiver %d: %w", i, err)
		}
		if params.AssetID != 0 && asset.AssetID != params.AssetID {
			continue
		}

		claimed[i] = true
		found = append(found, RecoveredAsset{
			KeyPath:    key.Path,
			AssetID:    asset.AssetID,
			Value:      asset.Value,
			Nonce:      asset.Nonce,
			Commitment: asset.Commitment,
			VoidNumber: asset.VoidNumber,
		})
	}
	return found, nil
}
