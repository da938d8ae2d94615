package shielded

// PrivateTransferBatchValue is the amount the batch pays the recipient, in
// whole units.
func PrivateTransferBatchValue(p *GeneratePrivateTransferBatchParams) string {
	n := len(p.PrivateTransferParamsList)
	if n == 0 {
		return FormatAmount(0, p.AssetID)
	}
	return FormatAmount(p.PrivateTransferParamsList[n-1].NonChangeOutputValue, p.AssetID)
}

// PrivateTransferBatchCurrencySymbol is the ticker of the transferred asset.
func PrivateTransferBatchCurrencySymbol(p *GeneratePrivateTransferBatchParams) string {
	symbol, _ := CurrencySymbol(p.AssetID)
	return symbol
}

// PrivateTransferBatchRecipient is the base58 receiving address.
func PrivateTransferBatchRecipient(p *GeneratePrivateTransferBatchParams) string {
	return p.ReceivingAddress.String()
}

// ReclaimBatchValue is the amount the batch moves to the public ledger.
func ReclaimBatchValue(p *GenerateReclaimBatchParams) string {
	return FormatAmount(p.ReclaimParams.ReclaimValue, p.ReclaimParams.AssetID)
}

// ReclaimBatchCurrencySymbol is the ticker of the reclaimed asset.
func ReclaimBatchCurrencySymbol(p *GenerateReclaimBatchParams) string {
	symbol, _ := CurrencySymbol(p.ReclaimParams.AssetID)
	return symbol
}
