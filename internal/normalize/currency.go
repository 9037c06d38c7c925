package normalize

import "strings"

// usdRates maps ISO currency codes to approximate USD conversion rates.
// The table is static: downstream filtering only needs order-of-magnitude
// comparability, not live FX.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"CAD": 0.73,
	"BRL": 0.18,
	"MXN": 0.058,
	"COP": 0.00025,
	"PEN": 0.27,
	"CLP": 0.0011,
	"ARS": 0.0011,
	"UYU": 0.025,
	"BOB": 0.14,
	"GTQ": 0.13,
	"DOP": 0.017,
	"JPY": 0.0066,
	"CNY": 0.14,
	"INR": 0.012,
	"XDR": 1.33,
}

// ToUSD converts amount into US dollars using the static rate table.
// Absent amounts and unknown currencies yield nil, never zero.
func ToUSD(amount *float64, currency string) *float64 {
	if amount == nil {
		return nil
	}
	rate, ok := usdRates[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return nil
	}
	v := *amount * rate
	return &v
}
