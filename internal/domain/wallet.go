package domain

import "time"

// Wallet field names. Disjoint from the token namespace.
const (
	FieldAdaBalance       = "ada_balance"
	FieldAssets           = "assets"
	FieldStakeAddress     = "stake_address"
	FieldHandle           = "handle"
	FieldTransactionCount = "transaction_count"
	FieldRewardsBalance   = "rewards_balance"
)

// WalletFields lists every wallet field name.
var WalletFields = []string{
	FieldAdaBalance, FieldAssets, FieldStakeAddress,
	FieldHandle, FieldTransactionCount, FieldRewardsBalance,
}

// AssetHolding is one native asset held by a wallet.
type AssetHolding struct {
	Unit     string  `json:"unit"`
	Quantity string  `json:"quantity"`
	Decimals int     `json:"decimals,omitempty"`
	Name     string  `json:"name,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// WalletData is the unified record for an account address.
type WalletData struct {
	Address string `json:"address"`

	AdaBalance       *float64       `json:"ada_balance,omitempty"`
	Assets           []AssetHolding `json:"assets,omitempty"`
	StakeAddress     *string        `json:"stake_address,omitempty"`
	Handle           *string        `json:"handle,omitempty"`
	TransactionCount *int64         `json:"transaction_count,omitempty"`
	RewardsBalance   *float64       `json:"rewards_balance,omitempty"`

	DataSource  []string  `json:"data_source,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy sharing no pointers with the receiver.
func (w WalletData) Clone() WalletData {
	cp := w
	cp.AdaBalance = clonePtr(w.AdaBalance)
	cp.Assets = cloneSlice(w.Assets)
	cp.StakeAddress = clonePtr(w.StakeAddress)
	cp.Handle = clonePtr(w.Handle)
	cp.TransactionCount = clonePtr(w.TransactionCount)
	cp.RewardsBalance = clonePtr(w.RewardsBalance)
	cp.DataSource = cloneSlice(w.DataSource)
	return cp
}

// FieldValue returns the value stored for the named wallet field.
func (w *WalletData) FieldValue(field string) (interface{}, bool) {
	switch field {
	case FieldAdaBalance:
		return deref(w.AdaBalance)
	case FieldAssets:
		if w.Assets == nil {
			return nil, false
		}
		return w.Assets, true
	case FieldStakeAddress:
		return deref(w.StakeAddress)
	case FieldHandle:
		return deref(w.Handle)
	case FieldTransactionCount:
		return deref(w.TransactionCount)
	case FieldRewardsBalance:
		return deref(w.RewardsBalance)
	}
	return nil, false
}

// SetField stores a value for the named wallet field.
func (w *WalletData) SetField(field string, value interface{}) {
	switch field {
	case FieldAdaBalance:
		setFloat(&w.AdaBalance, value)
	case FieldAssets:
		if v, ok := value.([]AssetHolding); ok {
			w.Assets = v
		}
	case FieldStakeAddress:
		setString(&w.StakeAddress, value)
	case FieldHandle:
		setString(&w.Handle, value)
	case FieldTransactionCount:
		setInt64(&w.TransactionCount, value)
	case FieldRewardsBalance:
		setFloat(&w.RewardsBalance, value)
	}
}
