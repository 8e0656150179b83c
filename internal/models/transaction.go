package models

import (
	"math/big"

	"github.com/yield-indexer/internal/types"
)

// Transaction is the immutable record of one logical protocol action.
// AmountsIn and AmountsOut are ordered AssetAmount keys.
type Transaction struct {
	ID          string                `json:"id"`
	Hash        string                `json:"hash"`
	LogIndex    uint                  `json:"logIndex"`
	BlockNumber uint64                `json:"blockNumber"`
	Timestamp   uint64                `json:"timestamp"`
	Type        types.TransactionType `json:"type"`
	User        string                `json:"user"`
	Future      string                `json:"future,omitempty"`
	Pool        string                `json:"pool,omitempty"`
	LPVault     string                `json:"lpVault,omitempty"`
	AmountsIn   []string              `json:"amountsIn"`
	AmountsOut  []string              `json:"amountsOut"`
	GasUsed     uint64                `json:"gasUsed"`
	GasPrice    *big.Int              `json:"gasPrice"`
	Fee         *big.Int              `json:"fee"`
	AdminFee    *big.Int              `json:"adminFee"`
}

func (t *Transaction) EntityKind() Kind { return KindTransaction }
func (t *Transaction) EntityID() string { return t.ID }
func (t *Transaction) writeOnce()       {}

// Transfer is the immutable record of a raw token transfer
type Transfer struct {
	ID          string   `json:"id"`
	Hash        string   `json:"hash"`
	LogIndex    uint     `json:"logIndex"`
	BlockNumber uint64   `json:"blockNumber"`
	Timestamp   uint64   `json:"timestamp"`
	Asset       string   `json:"asset"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Amount      *big.Int `json:"amount"`
}

func (t *Transfer) EntityKind() Kind { return KindTransfer }
func (t *Transfer) EntityID() string { return t.ID }
func (t *Transfer) writeOnce()       {}
