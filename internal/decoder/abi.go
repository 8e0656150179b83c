package decoder

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/yield-indexer/internal/types"
)

// eventABI declares every event the indexer consumes. Pool events follow the
// two-coin crypto pool layout; the fee parameters the indexer ignores are
// still declared so the data section decodes.
const eventABI = `[
{"type":"event","name":"PTDeployed","anonymous":false,"inputs":[
 {"name":"pt","type":"address","indexed":true},
 {"name":"poolCreator","type":"address","indexed":true}]},
{"type":"event","name":"CurvePoolDeployed","anonymous":false,"inputs":[
 {"name":"poolAddress","type":"address","indexed":true},
 {"name":"ibt","type":"address","indexed":true},
 {"name":"pt","type":"address","indexed":true}]},
{"type":"event","name":"LPVaultDeployed","anonymous":false,"inputs":[
 {"name":"lpVault","type":"address","indexed":true},
 {"name":"pt","type":"address","indexed":true},
 {"name":"poolIndex","type":"uint256","indexed":false}]},
{"type":"event","name":"RegistryChange","anonymous":false,"inputs":[
 {"name":"previousRegistry","type":"address","indexed":true},
 {"name":"newRegistry","type":"address","indexed":true}]},

{"type":"event","name":"Mint","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"to","type":"address","indexed":true},
 {"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"Redeem","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"to","type":"address","indexed":true},
 {"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"YieldUpdated","anonymous":false,"inputs":[
 {"name":"user","type":"address","indexed":true},
 {"name":"yieldInIBT","type":"uint256","indexed":true}]},
{"type":"event","name":"YieldClaimed","anonymous":false,"inputs":[
 {"name":"owner","type":"address","indexed":true},
 {"name":"receiver","type":"address","indexed":true},
 {"name":"yieldInIBT","type":"uint256","indexed":true}]},
{"type":"event","name":"FeeClaimed","anonymous":false,"inputs":[
 {"name":"user","type":"address","indexed":true},
 {"name":"redeemedIBTs","type":"uint256","indexed":true},
 {"name":"receivedAssets","type":"uint256","indexed":true}]},
{"type":"event","name":"Paused","anonymous":false,"inputs":[
 {"name":"account","type":"address","indexed":false}]},
{"type":"event","name":"Unpaused","anonymous":false,"inputs":[
 {"name":"account","type":"address","indexed":false}]},
{"type":"event","name":"RatesStoredAtExpiry","anonymous":false,"inputs":[
 {"name":"ibtRate","type":"uint256","indexed":false},
 {"name":"ptRate","type":"uint256","indexed":false}]},

{"type":"event","name":"Transfer","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"to","type":"address","indexed":true},
 {"name":"value","type":"uint256","indexed":false}]},

{"type":"event","name":"TokenExchange","anonymous":false,"inputs":[
 {"name":"buyer","type":"address","indexed":true},
 {"name":"sold_id","type":"uint256","indexed":false},
 {"name":"tokens_sold","type":"uint256","indexed":false},
 {"name":"bought_id","type":"uint256","indexed":false},
 {"name":"tokens_bought","type":"uint256","indexed":false}]},
{"type":"event","name":"AddLiquidity","anonymous":false,"inputs":[
 {"name":"provider","type":"address","indexed":true},
 {"name":"token_amounts","type":"uint256[2]","indexed":false},
 {"name":"fee","type":"uint256","indexed":false},
 {"name":"token_supply","type":"uint256","indexed":false}]},
{"type":"event","name":"RemoveLiquidity","anonymous":false,"inputs":[
 {"name":"provider","type":"address","indexed":true},
 {"name":"token_amounts","type":"uint256[2]","indexed":false},
 {"name":"token_supply","type":"uint256","indexed":false}]},
{"type":"event","name":"RemoveLiquidityOne","anonymous":false,"inputs":[
 {"name":"provider","type":"address","indexed":true},
 {"name":"token_amount","type":"uint256","indexed":false},
 {"name":"coin_index","type":"uint256","indexed":false},
 {"name":"coin_amount","type":"uint256","indexed":false}]},
{"type":"event","name":"CommitNewParameters","anonymous":false,"inputs":[
 {"name":"deadline","type":"uint256","indexed":true},
 {"name":"admin_fee","type":"uint256","indexed":false},
 {"name":"mid_fee","type":"uint256","indexed":false},
 {"name":"out_fee","type":"uint256","indexed":false},
 {"name":"fee_gamma","type":"uint256","indexed":false},
 {"name":"allowed_extra_profit","type":"uint256","indexed":false},
 {"name":"adjustment_step","type":"uint256","indexed":false},
 {"name":"ma_half_time","type":"uint256","indexed":false}]},
{"type":"event","name":"NewParameters","anonymous":false,"inputs":[
 {"name":"admin_fee","type":"uint256","indexed":false},
 {"name":"mid_fee","type":"uint256","indexed":false},
 {"name":"out_fee","type":"uint256","indexed":false},
 {"name":"fee_gamma","type":"uint256","indexed":false},
 {"name":"allowed_extra_profit","type":"uint256","indexed":false},
 {"name":"adjustment_step","type":"uint256","indexed":false},
 {"name":"ma_half_time","type":"uint256","indexed":false}]},
{"type":"event","name":"ClaimAdminFee","anonymous":false,"inputs":[
 {"name":"admin","type":"address","indexed":true},
 {"name":"tokens","type":"uint256","indexed":false}]},

{"type":"event","name":"Deposit","anonymous":false,"inputs":[
 {"name":"sender","type":"address","indexed":true},
 {"name":"owner","type":"address","indexed":true},
 {"name":"assets","type":"uint256","indexed":false},
 {"name":"shares","type":"uint256","indexed":false}]},
{"type":"event","name":"Withdraw","anonymous":false,"inputs":[
 {"name":"sender","type":"address","indexed":true},
 {"name":"receiver","type":"address","indexed":true},
 {"name":"owner","type":"address","indexed":true},
 {"name":"assets","type":"uint256","indexed":false},
 {"name":"shares","type":"uint256","indexed":false}]},

{"type":"event","name":"FeedConfirmed","anonymous":false,"inputs":[
 {"name":"asset","type":"address","indexed":true},
 {"name":"denomination","type":"address","indexed":true},
 {"name":"latestAggregator","type":"address","indexed":true},
 {"name":"previousAggregator","type":"address","indexed":false},
 {"name":"nextPhaseId","type":"uint16","indexed":false},
 {"name":"sender","type":"address","indexed":false}]},
{"type":"event","name":"AnswerUpdated","anonymous":false,"inputs":[
 {"name":"current","type":"int256","indexed":true},
 {"name":"roundId","type":"uint256","indexed":true},
 {"name":"updatedAt","type":"uint256","indexed":false}]}
]`

var parsedEventABI = mustParseABI(eventABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("decoder: invalid event ABI: " + err.Error())
	}
	return parsed
}

// EventABI returns the parsed event ABI
func EventABI() abi.ABI {
	return parsedEventABI
}

// templateEvents lists the events each data source template is followed for
var templateEvents = map[types.Template][]string{
	types.TemplateFactory: {"PTDeployed", "CurvePoolDeployed", "LPVaultDeployed", "RegistryChange"},
	types.TemplateFuture: {
		"Mint", "Redeem", "YieldUpdated", "YieldClaimed", "FeeClaimed",
		"Paused", "Unpaused", "RatesStoredAtExpiry", "Transfer",
	},
	types.TemplateToken: {"Transfer"},
	types.TemplatePool: {
		"TokenExchange", "AddLiquidity", "RemoveLiquidity", "RemoveLiquidityOne",
		"CommitNewParameters", "NewParameters", "ClaimAdminFee",
	},
	types.TemplateLPVault:      {"Deposit", "Withdraw", "Transfer"},
	types.TemplateFeedRegistry: {"FeedConfirmed"},
	types.TemplatePriceFeed:    {"AnswerUpdated"},
}
