package signerrpc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/Manta-Network/manta-signer/zkp"
	"github.com/labstack/echo/v4"
)

// maxBodySize bounds a request body.  Shards dominate the size of a batch.
const maxBodySize = 8 << 20

// appVersionParam is the query parameter echoed back in every response.
const appVersionParam = "app_version"

// decodeParams reads a JSON request body into params.
func decodeParams(c echo.Context, params interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(),
		c.Request().Body, maxBodySize))
	if err != nil {
		return DeserializationError{err}
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(body, params); err != nil {
		return DeserializationError{err}
	}
	return nil
}

// heartbeat lets the dApp check that the signer is running.
func (s *Server) heartbeat(c echo.Context) error {
	return c.String(http.StatusOK, "heartbeat")
}

func (s *Server) recoverAccount(c echo.Context) error {
	var params shielded.RecoverAccountParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	log.Debugf("Recovering account %d from %d receivers", params.Account,
		len(params.Receivers))

	ctx := c.Request().Context()
	seed, err := s.state.getRootSeed(ctx, NewPrompt(PromptRecoverAccount))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	account, err := shielded.RecoverAccount(seed.Bytes(), &params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &RecoverAccountMessage{
		RecoveredAccount: account,
		Version:          s.cfg.Version,
		AppVersion:       c.QueryParam(appVersionParam),
	})
}

func (s *Server) deriveShieldedAddress(c echo.Context) error {
	var params shielded.DeriveShieldedAddressParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	log.Debugf("Deriving shielded address at %v", params.KeyPath)

	ctx := c.Request().Context()
	seed, err := s.state.getRootSeed(ctx, NewPrompt(PromptDeriveShieldedAddress))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	addr, err := shielded.DeriveShieldedAddress(seed.Bytes(), &params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &ShieldedAddressMessage{
		Address:    addr,
		Version:    s.cfg.Version,
		AppVersion: c.QueryParam(appVersionParam),
	})
}

func (s *Server) generateAsset(c echo.Context) error {
	var params shielded.GenerateAssetParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	log.Debugf("Generating asset %d at %v", params.AssetID, params.KeyPath)

	ctx := c.Request().Context()
	seed, err := s.state.getRootSeed(ctx, NewPrompt(PromptGenerateAsset))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	asset, err := shielded.GenerateAsset(seed.Bytes(), &params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &AssetMessage{
		Asset:      asset,
		Version:    s.cfg.Version,
		AppVersion: c.QueryParam(appVersionParam),
	})
}

func (s *Server) generateMintData(c echo.Context) error {
	var params shielded.GenerateAssetParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	log.Debugf("Generating mint data for asset %d at %v", params.AssetID,
		params.KeyPath)

	ctx := c.Request().Context()
	seed, err := s.state.getRootSeed(ctx, NewPrompt(PromptMint))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	mint, err := zkp.GenerateMintData(seed.Bytes(), &params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &MintMessage{
		MintData:   mint,
		Version:    s.cfg.Version,
		AppVersion: c.QueryParam(appVersionParam),
	})
}

// generatePrivateTransferData always asks the user to authorize the batch,
// even when the signer is unlocked.
func (s *Server) generatePrivateTransferData(c echo.Context) error {
	var params shielded.GeneratePrivateTransferBatchParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return InvalidParameterError{err}
	}
	log.Debugf("Generating %d private transfers of asset %d",
		len(params.PrivateTransferParamsList), params.AssetID)

	ctx := c.Request().Context()
	seed, err := s.state.checkRootSeed(ctx, PrivateTransferPrompt(&params))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	batch, err := zkp.BatchGeneratePrivateTransferData(ctx, s.engine,
		seed.Bytes(), &params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &PrivateTransferMessage{
		PrivateTransferData: batch,
		Version:             s.cfg.Version,
		AppVersion:          c.QueryParam(appVersionParam),
	})
}

// generateReclaimData always asks the user to authorize the batch, even when
// the signer is unlocked.
func (s *Server) generateReclaimData(c echo.Context) error {
	var params shielded.GenerateReclaimBatchParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return InvalidParameterError{err}
	}
	log.Debugf("Generating reclaim of asset %d with %d private transfers",
		params.ReclaimParams.AssetID, len(params.PrivateTransferParamsList))

	ctx := c.Request().Context()
	seed, err := s.state.checkRootSeed(ctx, ReclaimPrompt(&params))
	if err != nil {
		return err
	}
	defer seed.Destroy()

	batch, err := zkp.BatchGenerateReclaimData(ctx, s.engine, seed.Bytes(),
		&params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &ReclaimMessage{
		ReclaimData: batch,
		Version:     s.cfg.Version,
		AppVersion:  c.QueryParam(appVersionParam),
	})
}
