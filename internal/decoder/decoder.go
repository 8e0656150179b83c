// Package decoder turns raw logs into typed protocol events. Which events a
// log may decode to depends on the template its emitting contract was
// registered under.
package decoder

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/types"
)

// TxContext is what a log's envelope needs from its block and transaction
type TxContext struct {
	Timestamp uint64
	From      common.Address
	GasUsed   uint64
	GasPrice  *big.Int
}

// Decoder decodes logs against the event ABI
type Decoder struct {
	abi     abi.ABI
	allowed map[types.Template]map[common.Hash]string
}

// New creates a decoder over the built-in event ABI
func New() *Decoder {
	d := &Decoder{
		abi:     parsedEventABI,
		allowed: make(map[types.Template]map[common.Hash]string, len(templateEvents)),
	}
	for template, names := range templateEvents {
		ids := make(map[common.Hash]string, len(names))
		for _, name := range names {
			ids[d.abi.Events[name].ID] = name
		}
		d.allowed[template] = ids
	}
	return d
}

// Topics returns the topic0 values followed for the given templates, sorted
func (d *Decoder) Topics(templates ...types.Template) []common.Hash {
	seen := make(map[common.Hash]bool)
	var out []common.Hash
	for _, t := range templates {
		for id := range d.allowed[t] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Big().Cmp(out[j].Big()) < 0 })
	return out
}

// Supports reports whether the template is known
func (d *Decoder) Supports(template types.Template) bool {
	_, ok := d.allowed[template]
	return ok
}

// Decode decodes log as an event of a contract registered under template.
// It returns nil without error for removed logs and for topics the
// template does not follow.
func (d *Decoder) Decode(log gethtypes.Log, template types.Template, tx TxContext) (events.Event, error) {
	if log.Removed || len(log.Topics) == 0 {
		return nil, nil
	}
	name, ok := d.allowed[template][log.Topics[0]]
	if !ok {
		return nil, nil
	}
	ev := d.abi.Events[name]

	values := make(map[string]interface{})
	if len(log.Data) > 0 || len(ev.Inputs.NonIndexed()) > 0 {
		if err := d.abi.UnpackIntoMap(values, name, log.Data); err != nil {
			return nil, apperrors.NewDecodeError(name, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return nil, apperrors.NewDecodeError(name,
			fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(log.Topics)-1))
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, apperrors.NewDecodeError(name, err)
	}

	env := events.Envelope{
		Contract:       log.Address,
		TxHash:         log.TxHash,
		LogIndex:       log.Index,
		BlockNumber:    log.BlockNumber,
		BlockTimestamp: tx.Timestamp,
		GasUsed:        tx.GasUsed,
		GasPrice:       tx.GasPrice,
		From:           tx.From,
	}
	if env.GasPrice == nil {
		env.GasPrice = new(big.Int)
	}

	f := &fields{event: name, values: values}
	out := build(name, env, f)
	if f.err != nil {
		return nil, apperrors.NewDecodeError(name, f.err)
	}
	return out, nil
}

func build(name string, env events.Envelope, f *fields) events.Event {
	switch name {
	case "PTDeployed":
		return &events.PTDeployed{Envelope: env, PT: f.address("pt"), PoolCreator: f.address("poolCreator")}
	case "CurvePoolDeployed":
		return &events.CurvePoolDeployed{Envelope: env, Pool: f.address("poolAddress"), IBT: f.address("ibt"), PT: f.address("pt")}
	case "LPVaultDeployed":
		return &events.LPVaultDeployed{Envelope: env, LPVault: f.address("lpVault"), PT: f.address("pt"), PoolIndex: f.bigInt("poolIndex")}
	case "RegistryChange":
		return &events.RegistryChange{Envelope: env, PreviousRegistry: f.address("previousRegistry"), NewRegistry: f.address("newRegistry")}

	case "Mint":
		return &events.Mint{Envelope: env, From: f.address("from"), To: f.address("to"), Amount: f.bigInt("amount")}
	case "Redeem":
		return &events.Redeem{Envelope: env, From: f.address("from"), To: f.address("to"), Amount: f.bigInt("amount")}
	case "YieldUpdated":
		return &events.YieldUpdated{Envelope: env, User: f.address("user"), YieldInIBT: f.bigInt("yieldInIBT")}
	case "YieldClaimed":
		return &events.YieldClaimed{Envelope: env, Owner: f.address("owner"), Receiver: f.address("receiver"), YieldInIBT: f.bigInt("yieldInIBT")}
	case "FeeClaimed":
		return &events.FeeClaimed{Envelope: env, User: f.address("user"), RedeemedIBTs: f.bigInt("redeemedIBTs"), ReceivedAssets: f.bigInt("receivedAssets")}
	case "Paused":
		return &events.Paused{Envelope: env, Account: f.address("account")}
	case "Unpaused":
		return &events.Unpaused{Envelope: env, Account: f.address("account")}
	case "RatesStoredAtExpiry":
		return &events.RatesStoredAtExpiry{Envelope: env, IBTRate: f.bigInt("ibtRate"), PTRate: f.bigInt("ptRate")}

	case "Transfer":
		return &events.Transfer{Envelope: env, From: f.address("from"), To: f.address("to"), Value: f.bigInt("value")}

	case "TokenExchange":
		return &events.TokenExchange{
			Envelope: env, Buyer: f.address("buyer"),
			SoldID: f.bigInt("sold_id"), TokensSold: f.bigInt("tokens_sold"),
			BoughtID: f.bigInt("bought_id"), TokensBought: f.bigInt("tokens_bought"),
		}
	case "AddLiquidity":
		return &events.AddLiquidity{
			Envelope: env, Provider: f.address("provider"), TokenAmounts: f.pair("token_amounts"),
			Fee: f.bigInt("fee"), TokenSupply: f.bigInt("token_supply"),
		}
	case "RemoveLiquidity":
		return &events.RemoveLiquidity{
			Envelope: env, Provider: f.address("provider"), TokenAmounts: f.pair("token_amounts"),
			TokenSupply: f.bigInt("token_supply"),
		}
	case "RemoveLiquidityOne":
		return &events.RemoveLiquidityOne{
			Envelope: env, Provider: f.address("provider"), TokenAmount: f.bigInt("token_amount"),
			CoinIndex: f.bigInt("coin_index"), CoinAmount: f.bigInt("coin_amount"),
		}
	case "CommitNewParameters":
		return &events.CommitNewParameters{Envelope: env, Deadline: f.bigInt("deadline"), AdminFee: f.bigInt("admin_fee"), MidFee: f.bigInt("mid_fee")}
	case "NewParameters":
		return &events.NewParameters{Envelope: env, AdminFee: f.bigInt("admin_fee"), MidFee: f.bigInt("mid_fee")}
	case "ClaimAdminFee":
		return &events.ClaimAdminFee{Envelope: env, Admin: f.address("admin"), Tokens: f.bigInt("tokens")}

	case "Deposit":
		return &events.Deposit{Envelope: env, Sender: f.address("sender"), Owner: f.address("owner"), Assets: f.bigInt("assets"), Shares: f.bigInt("shares")}
	case "Withdraw":
		return &events.Withdraw{
			Envelope: env, Sender: f.address("sender"), Receiver: f.address("receiver"), Owner: f.address("owner"),
			Assets: f.bigInt("assets"), Shares: f.bigInt("shares"),
		}

	case "FeedConfirmed":
		return &events.FeedConfirmed{
			Envelope: env, Asset: f.address("asset"), Denomination: f.address("denomination"),
			LatestAggregator: f.address("latestAggregator"), PreviousAggregator: f.address("previousAggregator"),
			NextPhaseID: f.uint16("nextPhaseId"), Sender: f.address("sender"),
		}
	case "AnswerUpdated":
		return &events.AnswerUpdated{Envelope: env, Current: f.bigInt("current"), RoundID: f.bigInt("roundId"), UpdatedAt: f.bigInt("updatedAt")}
	}
	f.err = fmt.Errorf("no builder for %s", name)
	return nil
}

// fields reads typed values out of an unpacked log, keeping the first failure
type fields struct {
	event  string
	values map[string]interface{}
	err    error
}

func (f *fields) fail(key string, v interface{}) {
	if f.err == nil {
		f.err = fmt.Errorf("field %s has type %T", key, v)
	}
}

func (f *fields) address(key string) common.Address {
	v, ok := f.values[key].(common.Address)
	if !ok {
		f.fail(key, f.values[key])
	}
	return v
}

func (f *fields) bigInt(key string) *big.Int {
	v, ok := f.values[key].(*big.Int)
	if !ok || v == nil {
		f.fail(key, f.values[key])
		return new(big.Int)
	}
	return v
}

func (f *fields) pair(key string) [2]*big.Int {
	v, ok := f.values[key].([2]*big.Int)
	if !ok {
		f.fail(key, f.values[key])
		return [2]*big.Int{new(big.Int), new(big.Int)}
	}
	return v
}

func (f *fields) uint16(key string) uint16 {
	v, ok := f.values[key].(uint16)
	if !ok {
		f.fail(key, f.values[key])
	}
	return v
}
