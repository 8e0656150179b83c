package models

// Network is the chain the indexer runs against. It is written once at
// startup from configuration.
type Network struct {
	ID      string `json:"id"`
	ChainID int64  `json:"chainId"`
	Name    string `json:"name"`
}

func (n *Network) EntityKind() Kind { return KindNetwork }
func (n *Network) EntityID() string { return n.ID }

// Factory deploys futures, pools and LP vaults and owns the registry pointer
type Factory struct {
	Address     string   `json:"address"`
	Admin       string   `json:"admin"`
	FeeReceiver string   `json:"feeReceiver"`
	Registry    string   `json:"registry"`
	Futures     []string `json:"futures"`
	Pools       []string `json:"pools"`
	LPVaults    []string `json:"lpVaults"`
	CreatedAt   uint64   `json:"createdAt"`
	CreatedAtBN uint64   `json:"createdAtBlock"`
}

func (f *Factory) EntityKind() Kind { return KindFactory }
func (f *Factory) EntityID() string { return f.Address }

// AddFuture links a future, reporting whether it was new
func (f *Factory) AddFuture(id string) bool {
	var added bool
	f.Futures, added = appendUnique(f.Futures, id)
	return added
}

// AddPool links a pool, reporting whether it was new
func (f *Factory) AddPool(id string) bool {
	var added bool
	f.Pools, added = appendUnique(f.Pools, id)
	return added
}

// AddLPVault links an LP vault, reporting whether it was new
func (f *Factory) AddLPVault(id string) bool {
	var added bool
	f.LPVaults, added = appendUnique(f.LPVaults, id)
	return added
}

// DataSource is a contract address the event source was asked to follow
type DataSource struct {
	Address    string `json:"address"`
	Template   string `json:"template"`
	StartBlock uint64 `json:"startBlock"`
	// Parent is the entity whose creation registered this source
	Parent string `json:"parent,omitempty"`
}

func (d *DataSource) EntityKind() Kind { return KindDataSource }
func (d *DataSource) EntityID() string { return d.Address }
