package domain

import "time"

// Token field names. These form one of the two field namespaces; a provider
// declares the subset it can supply at registration time.
const (
	FieldPrice             = "price"
	FieldMarketCap         = "market_cap"
	FieldVolume24h         = "volume_24h"
	FieldPriceChange24h    = "price_change_24h"
	FieldName              = "name"
	FieldTicker            = "ticker"
	FieldDecimals          = "decimals"
	FieldTotalSupply       = "total_supply"
	FieldCirculatingSupply = "circulating_supply"
	FieldHolders           = "holders"
	FieldLogo              = "logo"
	FieldDescription       = "description"
)

// TokenFields lists every token field name.
var TokenFields = []string{
	FieldPrice, FieldMarketCap, FieldVolume24h, FieldPriceChange24h,
	FieldName, FieldTicker, FieldDecimals, FieldTotalSupply,
	FieldCirculatingSupply, FieldHolders, FieldLogo, FieldDescription,
}

// TokenData is the unified record for a fungible asset. Pointer fields
// distinguish "provider did not supply this field" from a zero value.
type TokenData struct {
	Unit string `json:"unit"`

	Price             *float64 `json:"price,omitempty"`
	MarketCap         *float64 `json:"market_cap,omitempty"`
	Volume24h         *float64 `json:"volume_24h,omitempty"`
	PriceChange24h    *float64 `json:"price_change_24h,omitempty"`
	Name              *string  `json:"name,omitempty"`
	Ticker            *string  `json:"ticker,omitempty"`
	Decimals          *int     `json:"decimals,omitempty"`
	TotalSupply       *float64 `json:"total_supply,omitempty"`
	CirculatingSupply *float64 `json:"circulating_supply,omitempty"`
	Holders           *int64   `json:"holders,omitempty"`
	Logo              *string  `json:"logo,omitempty"`
	Description       *string  `json:"description,omitempty"`

	DataSource  []string  `json:"data_source,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy sharing no pointers with the receiver.
func (t TokenData) Clone() TokenData {
	cp := t
	cp.Price = clonePtr(t.Price)
	cp.MarketCap = clonePtr(t.MarketCap)
	cp.Volume24h = clonePtr(t.Volume24h)
	cp.PriceChange24h = clonePtr(t.PriceChange24h)
	cp.Name = clonePtr(t.Name)
	cp.Ticker = clonePtr(t.Ticker)
	cp.Decimals = clonePtr(t.Decimals)
	cp.TotalSupply = clonePtr(t.TotalSupply)
	cp.CirculatingSupply = clonePtr(t.CirculatingSupply)
	cp.Holders = clonePtr(t.Holders)
	cp.Logo = clonePtr(t.Logo)
	cp.Description = clonePtr(t.Description)
	cp.DataSource = cloneSlice(t.DataSource)
	return cp
}

// FieldValue returns the value stored for the named field. The second return
// is false when the field is absent or the name is not a token field.
func (t *TokenData) FieldValue(field string) (interface{}, bool) {
	switch field {
	case FieldPrice:
		return deref(t.Price)
	case FieldMarketCap:
		return deref(t.MarketCap)
	case FieldVolume24h:
		return deref(t.Volume24h)
	case FieldPriceChange24h:
		return deref(t.PriceChange24h)
	case FieldName:
		return deref(t.Name)
	case FieldTicker:
		return deref(t.Ticker)
	case FieldDecimals:
		return deref(t.Decimals)
	case FieldTotalSupply:
		return deref(t.TotalSupply)
	case FieldCirculatingSupply:
		return deref(t.CirculatingSupply)
	case FieldHolders:
		return deref(t.Holders)
	case FieldLogo:
		return deref(t.Logo)
	case FieldDescription:
		return deref(t.Description)
	}
	return nil, false
}

// SetField stores a value for the named field. Values of the wrong dynamic
// type are ignored; the aggregator only moves values between records of the
// same shape.
func (t *TokenData) SetField(field string, value interface{}) {
	switch field {
	case FieldPrice:
		setFloat(&t.Price, value)
	case FieldMarketCap:
		setFloat(&t.MarketCap, value)
	case FieldVolume24h:
		setFloat(&t.Volume24h, value)
	case FieldPriceChange24h:
		setFloat(&t.PriceChange24h, value)
	case FieldName:
		setString(&t.Name, value)
	case FieldTicker:
		setString(&t.Ticker, value)
	case FieldDecimals:
		setInt(&t.Decimals, value)
	case FieldTotalSupply:
		setFloat(&t.TotalSupply, value)
	case FieldCirculatingSupply:
		setFloat(&t.CirculatingSupply, value)
	case FieldHolders:
		setInt64(&t.Holders, value)
	case FieldLogo:
		setString(&t.Logo, value)
	case FieldDescription:
		setString(&t.Description, value)
	}
}

func deref[T any](p *T) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func setFloat(dst **float64, value interface{}) {
	switch v := value.(type) {
	case float64:
		*dst = &v
	case int:
		f := float64(v)
		*dst = &f
	case int64:
		f := float64(v)
		*dst = &f
	}
}

func setString(dst **string, value interface{}) {
	if v, ok := value.(string); ok {
		*dst = &v
	}
}

func setInt(dst **int, value interface{}) {
	switch v := value.(type) {
	case int:
		*dst = &v
	case int64:
		i := int(v)
		*dst = &i
	case float64:
		i := int(v)
		*dst = &i
	}
}

func setInt64(dst **int64, value interface{}) {
	switch v := value.(type) {
	case int64:
		*dst = &v
	case int:
		i := int64(v)
		*dst = &i
	case float64:
		i := int64(v)
		*dst = &i
	}
}
