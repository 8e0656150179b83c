// Package ids derives the deterministic keys every entity is stored under.
// Keys are built from lowercase hex addresses and decimal integers joined by
// Delimiter, so replaying the same events always yields the same keys.
package ids

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// Delimiter separates key components
	Delimiter = "-"
	// NetworkID is the fixed key of the network singleton
	NetworkID = "network"
	// SecondsPerDay buckets timestamps into day ids
	SecondsPerDay int64 = 86400

	yieldPrefix = "yield"
)

// Flow tags for per-transaction AssetAmount legs
const (
	TagIn  = "in"
	TagOut = "out"
)

// Address returns the canonical lowercase 0x-hex form of addr
func Address(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// Hash returns the lowercase 0x-hex form of a transaction hash
func Hash(h common.Hash) string {
	return strings.ToLower(h.Hex())
}

func join(parts ...string) string {
	return strings.Join(parts, Delimiter)
}

// AccountAsset keys the balance row of account for asset
func AccountAsset(account, asset common.Address) string {
	return join(Address(account), Address(asset))
}

// YieldAccountAsset keys the derived yield position of a YT holder
func YieldAccountAsset(account, asset common.Address) string {
	return join(yieldPrefix, Address(account), Address(asset))
}

// AssetAmount keys a delta-accumulated amount of asset inside scope.
// Scope is a pool address for reserve legs or a transaction id for flows.
func AssetAmount(scope string, asset common.Address, tag ...string) string {
	parts := append([]string{scope, Address(asset)}, tag...)
	return join(parts...)
}

// DayID returns floor(timestamp / 86400)
func DayID(timestamp uint64) int64 {
	return int64(timestamp / uint64(SecondsPerDay))
}

// DailyStats keys the statistics bucket of entity on dayID
func DailyStats(entity common.Address, dayID int64) string {
	return join(Address(entity), strconv.FormatInt(dayID, 10))
}

// Transaction keys one logical transaction by hash and log index
func Transaction(hash common.Hash, logIndex uint) string {
	return join(Hash(hash), strconv.FormatUint(uint64(logIndex), 10))
}

// Transfer keys a raw token transfer record
func Transfer(hash common.Hash, logIndex uint) string {
	return join(Hash(hash), strconv.FormatUint(uint64(logIndex), 10))
}

// TimeSeries keys a write-once snapshot of entity at timestamp
func TimeSeries(entity common.Address, timestamp uint64) string {
	return join(Address(entity), strconv.FormatUint(timestamp, 10))
}
