package signerrpc

import (
	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/Manta-Network/manta-signer/zkp"
)

// Every response message carries the daemon version and echoes the
// app_version query parameter of the request.

// ShieldedAddressMessage is the response of /deriveShieldedAddress.
type ShieldedAddressMessage struct {
	Address    shielded.ShieldedAddress `json:"address"`
	Version    string                   `json:"version"`
	AppVersion string                   `json:"app_version"`
}

// RecoverAccountMessage is the response of /recoverAccount.
type RecoverAccountMessage struct {
	RecoveredAccount *shielded.RecoveredAccount `json:"recovered_account"`
	Version          string                     `json:"version"`
	AppVersion       string                     `json:"app_version"`
}

// AssetMessage is the response of /generateAsset.
type AssetMessage struct {
	Asset      *shielded.Asset `json:"asset"`
	Version    string          `json:"version"`
	AppVersion string          `json:"app_version"`
}

// MintMessage is the response of /generateMintData.
type MintMessage struct {
	MintData   *zkp.MintData `json:"mint_data"`
	Version    string        `json:"version"`
	AppVersion string        `json:"app_version"`
}

// PrivateTransferMessage is the response of /generatePrivateTransferData.
type PrivateTransferMessage struct {
	PrivateTransferData *zkp.PrivateTransferBatch `json:"private_transfer_data"`
	Version             string                    `json:"version"`
	AppVersion          string                    `json:"app_version"`
}

// ReclaimMessage is the response of /generateReclaimData.
type ReclaimMessage struct {
	ReclaimData *zkp.ReclaimBatch `json:"reclaim_data"`
	Version     string            `json:"version"`
	AppVersion  string            `json:"app_version"`
}
