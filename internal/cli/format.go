package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatPrice formats a price with appropriate decimal places. Quotes below
// 10 keep five decimals, enough for FX pips.
func FormatPrice(price float64) string {
	if math.Abs(price) >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.5f", price)
}

// FormatSlope formats a trendline slope with an explicit sign.
func FormatSlope(slope float64) string {
	return fmt.Sprintf("%+.6f", slope)
}

// FormatR formats a correlation coefficient.
func FormatR(r float64) string {
	return fmt.Sprintf("%+.3f", r)
}

// FormatVolume formats a candle volume.
func FormatVolume(volume float64) string {
	switch {
	case volume >= 1e7:
		return fmt.Sprintf("%.2f M", volume/1e6)
	case volume >= 1e4:
		return fmt.Sprintf("%.2f K", volume/1e3)
	}
	return fmt.Sprintf("%.0f", volume)
}

// FormatDateTime formats a candle timestamp in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
