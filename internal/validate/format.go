package validate

import "github.com/shopspring/decimal"

const (
	defaultAddressChars     = 4
	defaultBalancePrecision = 4
)

var dustThreshold = decimal.New(1, -4) // 0.0001

// FormatAddress shortens addr to its first chars+2 and last chars characters,
// joined by "...". chars defaults to 4: 0x1234...7890.
// Strings too short to shorten are returned unchanged.
func FormatAddress(addr string, chars ...int) string {
	c := defaultAddressChars
	if len(chars) > 0 && chars[0] > 0 {
		c = chars[0]
	}
	if len(addr) <= 2*c+2 {
		return addr
	}
	return addr[:c+2] + "..." + addr[len(addr)-c:]
}

// FormatBalance renders a decimal balance for display.
//
//	0                    → "0"
//	0 < |v| < 0.0001     → "< 0.0001"
//	otherwise            → v rounded to precision places (default 4)
//
// Unparseable input is returned as-is.
func FormatBalance(balance string, precision ...int) string {
	p := defaultBalancePrecision
	if len(precision) > 0 && precision[0] >= 0 {
		p = precision[0]
	}
	d, ok := parseDecimal(balance)
	if !ok {
		return balance
	}
	if d.IsZero() {
		return "0"
	}
	if d.Abs().LessThan(dustThreshold) {
		return "< 0.0001"
	}
	return d.StringFixed(int32(p))
}
