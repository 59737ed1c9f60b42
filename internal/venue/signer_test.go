package venue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatureGeneration(t *testing.T) {
	s := NewSigner("", "secret")
	got := s.Sign("symbol=BTCUSDT&side=BUY")
	require.Equal(t, "83ef3517b61b829b8755e0f6dcff8b6b1c29f47ae72076ecd2aee6237ffbc10f", got)
}

func TestFmtDecimal(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.01000000, "0.01"},
		{50000.00, "50000"},
		{1.23456789, "1.23456789"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, fmtDecimal(tc.in))
	}
}
