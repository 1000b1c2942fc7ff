package numfmt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"round trims zeros", Round(1.50, 2), "1.5"},
		{"round half away", Round(2.345, 2), "2.35"},
		{"fixed pads", Fixed(1.5, 3), "1.500"},
		{"grouped", Grouped(1234567.891, 2), "1,234,567.89"},
		{"grouped small", Grouped(999, 0), "999"},
		{"grouped negative", Grouped(-1234.5, 1), "-1,234.5"},
		{"signed positive", Signed(1220, 4), "+1,220"},
		{"signed zero", Signed(0, 4), "+0"},
		{"signed negative", Signed(-80, 4), "-80"},
		{"grouped fixed", GroupedFixed(12345, 2), "12,345.00"},
		{"signed fixed", SignedFixed(12.3, 2), "+12.30"},
		{"percent", Percent(0.22, 2), "22.00%"},
		{"percent small", Percent(0.0001, 4), "0.0100%"},
		{"inf", Round(math.Inf(1), 2), "inf"},
		{"signed inf", Signed(math.Inf(1), 2), "+inf"},
		{"nan", Grouped(math.NaN(), 2), "nan"},
		{"grouped point", GroupedPoint(1220, 4), "1,220.0"},
		{"grouped point keeps fraction", GroupedPoint(1234.56, 4), "1,234.56"},
		{"signed point", SignedPoint(55, 4), "+55.0"},
		{"signed point inf", SignedPoint(math.Inf(1), 4), "+inf"},
		{"signed percent", SignedPercent(0.22, 2), "+22.00%"},
		{"signed percent negative", SignedPercent(-0.5, 1), "-50.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
