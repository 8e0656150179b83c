// Package types provides common type definitions for the yield indexer.
package types

// AssetType tags what role a fungible token plays in the protocol
type AssetType string

const (
	// AssetUnderlying is the base asset a future is denominated in
	AssetUnderlying AssetType = "UNDERLYING"
	// AssetIBT is an interest-bearing token (vault share accruing yield)
	AssetIBT AssetType = "IBT"
	// AssetPT is a principal token issued by a future
	AssetPT AssetType = "PT"
	// AssetYT is a yield token issued alongside a PT
	AssetYT AssetType = "YT"
	// AssetLP is the liquidity-provider token of an AMM pool
	AssetLP AssetType = "LP"
	// AssetLPVaultShare is a share of an LP vault
	AssetLPVaultShare AssetType = "LP_VAULT_SHARE"
	// AssetYield is the derived yield position of a YT holder
	AssetYield AssetType = "YIELD"
	// AssetUnknown is used when the role cannot be determined
	AssetUnknown AssetType = "UNKNOWN"
)

// IsShareBased reports whether balances of this asset are vault shares
// convertible to an underlying amount.
func (t AssetType) IsShareBased() bool {
	return t == AssetIBT || t == AssetLPVaultShare
}

// FutureState represents the lifecycle state of a future
type FutureState string

const (
	// FutureActive accepts deposits and withdrawals
	FutureActive FutureState = "ACTIVE"
	// FuturePaused is temporarily halted by the protocol
	FuturePaused FutureState = "PAUSED"
	// FutureExpired has reached maturity and stored its final rates
	FutureExpired FutureState = "EXPIRED"
)

// TransactionType classifies a logical protocol transaction
type TransactionType string

const (
	TxDeposit            TransactionType = "DEPOSIT"
	TxWithdraw           TransactionType = "WITHDRAW"
	TxSwap               TransactionType = "SWAP"
	TxAddLiquidity       TransactionType = "ADD_LIQUIDITY"
	TxRemoveLiquidity    TransactionType = "REMOVE_LIQUIDITY"
	TxRemoveLiquidityOne TransactionType = "REMOVE_LIQUIDITY_ONE"
	TxClaimYield         TransactionType = "CLAIM_YIELD"
	TxClaimFees          TransactionType = "CLAIM_FEES"
	TxClaimAdminFee      TransactionType = "CLAIM_ADMIN_FEE"
	TxLPVaultDeposit     TransactionType = "LP_VAULT_DEPOSIT"
	TxLPVaultWithdraw    TransactionType = "LP_VAULT_WITHDRAW"
)

// StatsAction is the kind of touch recorded in a daily statistics bucket
type StatsAction string

const (
	ActionDeposit         StatsAction = "deposit"
	ActionWithdrawal      StatsAction = "withdrawal"
	ActionSwap            StatsAction = "swap"
	ActionAddLiquidity    StatsAction = "add_liquidity"
	ActionRemoveLiquidity StatsAction = "remove_liquidity"
)

// Template identifies the contract kind behind a registered data source.
// It selects which events are decoded for logs emitted by that address.
type Template string

const (
	TemplateFactory      Template = "factory"
	TemplateFuture       Template = "future"
	TemplateToken        Template = "token"
	TemplatePool         Template = "pool"
	TemplateLPVault      Template = "lp_vault"
	TemplateFeedRegistry Template = "feed_registry"
	TemplatePriceFeed    Template = "price_feed"
)

// Valid reports whether the template is one of the known contract kinds
func (t Template) Valid() bool {
	switch t {
	case TemplateFactory, TemplateFuture, TemplateToken, TemplatePool,
		TemplateLPVault, TemplateFeedRegistry, TemplatePriceFeed:
		return true
	}
	return false
}
