package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any price, FormatPrice should parse back within its rounding step and
// use five decimals below 10 and two otherwise.
func TestProperty_PriceFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatPrice preserves value", prop.ForAll(
		func(price float64) bool {
			s := FormatPrice(price)
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return false
			}

			decimals := len(s) - strings.Index(s, ".") - 1
			if math.Abs(price) >= 10 {
				return decimals == 2 && math.Abs(parsed-price) <= 0.005+1e-9
			}
			return decimals == 5 && math.Abs(parsed-price) <= 0.000005+1e-12
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("FormatSlope always carries a sign", prop.ForAll(
		func(slope float64) bool {
			s := FormatSlope(slope)
			return strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
		},
		gen.Float64Range(-10, 10),
	))

	properties.TestingRun(t)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{125 * time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0"},
		{4148.03, "4148"},
		{25000, "25.00 K"},
		{12500000, "12.50 M"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.v); got != tt.want {
			t.Errorf("FormatVolume(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
