// Package events holds the typed protocol events the mapping layer consumes.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Envelope carries the log and transaction context of an event
type Envelope struct {
	Contract       common.Address
	TxHash         common.Hash
	LogIndex       uint
	BlockNumber    uint64
	BlockTimestamp uint64
	GasUsed        uint64
	GasPrice       *big.Int
	From           common.Address
}

// Header returns the envelope itself so embedding types satisfy Event
func (e Envelope) Header() Envelope { return e }

// Event is a decoded log
type Event interface {
	Header() Envelope
	Name() string
}

// Factory events

type PTDeployed struct {
	Envelope
	PT          common.Address
	PoolCreator common.Address
}

type CurvePoolDeployed struct {
	Envelope
	Pool common.Address
	IBT  common.Address
	PT   common.Address
}

type LPVaultDeployed struct {
	Envelope
	LPVault   common.Address
	PT        common.Address
	PoolIndex *big.Int
}

type RegistryChange struct {
	Envelope
	PreviousRegistry common.Address
	NewRegistry      common.Address
}

// Principal token events

// Mint is emitted by a PT on deposit
type Mint struct {
	Envelope
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Redeem is emitted by a PT on withdrawal
type Redeem struct {
	Envelope
	From   common.Address
	To     common.Address
	Amount *big.Int
}

type YieldUpdated struct {
	Envelope
	User       common.Address
	YieldInIBT *big.Int
}

type YieldClaimed struct {
	Envelope
	Owner      common.Address
	Receiver   common.Address
	YieldInIBT *big.Int
}

type FeeClaimed struct {
	Envelope
	User           common.Address
	RedeemedIBTs   *big.Int
	ReceivedAssets *big.Int
}

type Paused struct {
	Envelope
	Account common.Address
}

type Unpaused struct {
	Envelope
	Account common.Address
}

type RatesStoredAtExpiry struct {
	Envelope
	IBTRate *big.Int
	PTRate  *big.Int
}

// Transfer is the ERC-20 transfer of any tracked token
type Transfer struct {
	Envelope
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Pool events

type TokenExchange struct {
	Envelope
	Buyer        common.Address
	SoldID       *big.Int
	TokensSold   *big.Int
	BoughtID     *big.Int
	TokensBought *big.Int
}

type AddLiquidity struct {
	Envelope
	Provider     common.Address
	TokenAmounts [2]*big.Int
	Fee          *big.Int
	TokenSupply  *big.Int
}

type RemoveLiquidity struct {
	Envelope
	Provider     common.Address
	TokenAmounts [2]*big.Int
	TokenSupply  *big.Int
}

type RemoveLiquidityOne struct {
	Envelope
	Provider    common.Address
	TokenAmount *big.Int
	CoinIndex   *big.Int
	CoinAmount  *big.Int
}

type CommitNewParameters struct {
	Envelope
	Deadline *big.Int
	AdminFee *big.Int
	MidFee   *big.Int
}

type NewParameters struct {
	Envelope
	AdminFee *big.Int
	MidFee   *big.Int
}

type ClaimAdminFee struct {
	Envelope
	Admin  common.Address
	Tokens *big.Int
}

// ERC-4626 vault events

type Deposit struct {
	Envelope
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

type Withdraw struct {
	Envelope
	Sender   common.Address
	Receiver common.Address
	Owner    common.Address
	Assets   *big.Int
	Shares   *big.Int
}

// Oracle events

type FeedConfirmed struct {
	Envelope
	Asset              common.Address
	Denomination       common.Address
	LatestAggregator   common.Address
	PreviousAggregator common.Address
	NextPhaseID        uint16
	Sender             common.Address
}

type AnswerUpdated struct {
	Envelope
	Current   *big.Int
	RoundID   *big.Int
	UpdatedAt *big.Int
}

func (PTDeployed) Name() string          { return "PTDeployed" }
func (CurvePoolDeployed) Name() string   { return "CurvePoolDeployed" }
func (LPVaultDeployed) Name() string     { return "LPVaultDeployed" }
func (RegistryChange) Name() string      { return "RegistryChange" }
func (Mint) Name() string                { return "Mint" }
func (Redeem) Name() string              { return "Redeem" }
func (YieldUpdated) Name() string        { return "YieldUpdated" }
func (YieldClaimed) Name() string        { return "YieldClaimed" }
func (FeeClaimed) Name() string          { return "FeeClaimed" }
func (Paused) Name() string              { return "Paused" }
func (Unpaused) Name() string            { return "Unpaused" }
func (RatesStoredAtExpiry) Name() string { return "RatesStoredAtExpiry" }
func (Transfer) Name() string            { return "Transfer" }
func (TokenExchange) Name() string       { return "TokenExchange" }
func (AddLiquidity) Name() string        { return "AddLiquidity" }
func (RemoveLiquidity) Name() string     { return "RemoveLiquidity" }
func (RemoveLiquidityOne) Name() string  { return "RemoveLiquidityOne" }
func (CommitNewParameters) Name() string { return "CommitNewParameters" }
func (NewParameters) Name() string       { return "NewParameters" }
func (ClaimAdminFee) Name() string       { return "ClaimAdminFee" }
func (Deposit) Name() string             { return "Deposit" }
func (Withdraw) Name() string            { return "Withdraw" }
func (FeedConfirmed) Name() string       { return "FeedConfirmed" }
func (AnswerUpdated) Name() string       { return "AnswerUpdated" }
