package zkp

import (
	"context"
	"fmt"
	"time"

	"github.com/Manta-Network/manta-signer/shielded"
	"golang.org/x/sync/errgroup"
)

// PrivateTransferBatch is the proven transfers of a batch, in request order.
type PrivateTransferBatch struct {
	PrivateTransferDataList []*PrivateTransferData `json:"private_transfer_data_list"`
}

// ReclaimBatch is the proven transfers and the final reclaim of a batch.
type ReclaimBatch struct {
	PrivateTransferDataList []*PrivateTransferData `json:"private_transfer_data_list"`
	ReclaimData             *ReclaimData           `json:"reclaim_data"`
}

// proveTransfers proves every transfer of list on g.  Only the last transfer
// pays receiving.
func proveTransfers(ctx context.Context, g *errgroup.Group, e *Engine, seed []byte,
	assetID shielded.AssetID, list []shielded.GeneratePrivateTransferParams,
	receiving *shielded.ShieldedAddress) []*PrivateTransferData {

	out := make([]*PrivateTransferData, len(list))
	for i := range list {
		i := i
		var to *shielded.ShieldedAddress
		if i == len(list)-1 {
			to = receiving
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := GeneratePrivateTransferData(e, seed, assetID, &list[i], to)
			if err != nil {
				return fmt.Errorf("transfer %d: %w", i, err)
			}
			out[i] = data
			return nil
		})
	}
	return out
}

// BatchGeneratePrivateTransferData proves every transfer of the batch
// concurrently.  The first failure cancels the transfers not yet started.
func BatchGeneratePrivateTransferData(ctx context.Context, e *Engine, seed []byte,
	params *shielded.GeneratePrivateTransferBatchParams) (*PrivateTransferBatch, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	list := proveTransfers(gctx, g, e, seed, params.AssetID,
		params.PrivateTransferParamsList, &params.ReceivingAddress)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("Proved %d private transfers in %v", len(list),
		time.Since(start).Round(time.Millisecond))
	return &PrivateTransferBatch{PrivateTransferDataList: list}, nil
}

// BatchGenerateReclaimData proves the transfers that merge the reclaimed notes
// along with the reclaim itself, all concurrently.  The transfers keep every
// output with the signer and use the reclaim's asset.
func BatchGenerateReclaimData(ctx context.Context, e *Engine, seed []byte,
	params *shielded.GenerateReclaimBatchParams) (*ReclaimBatch, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	batch := &ReclaimBatch{}
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		data, err := GenerateReclaimData(e, seed, &params.ReclaimParams)
		if err != nil {
			return fmt.Errorf("reclaim: %w", err)
		}
		batch.ReclaimData = data
		return nil
	})
	list := proveTransfers(gctx, g, e, seed, params.ReclaimParams.AssetID,
		params.PrivateTransferParamsList, nil)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	batch.PrivateTransferDataList = list

	log.Infof("Proved %d private transfers and a reclaim in %v", len(list),
		time.Since(start).Round(time.Millisecond))
	return batch, nil
}
