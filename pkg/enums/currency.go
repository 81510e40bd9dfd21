package enums

// Currency identifies the store's pricing currency.
type Currency string

const (
	CurrencyMXN Currency = "MXN"
	CurrencyUSD Currency = "USD"
)

// IsValid reports whether the value is a supported currency.
func (c Currency) IsValid() bool {
	return c == CurrencyMXN || c == CurrencyUSD
}
