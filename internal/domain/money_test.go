package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUSD(t *testing.T) {
	assert.Equal(t, 10.0, RoundUSD(10))
	assert.Equal(t, 10.23, RoundUSD(10.234))
	assert.Equal(t, 10.24, RoundUSD(10.236))
	assert.Equal(t, 0.1, RoundUSD(0.1+0.2-0.2))
	assert.Equal(t, -3.33, RoundUSD(-3.3349))
}

func TestRoundBTC(t *testing.T) {
	assert.Equal(t, 0.00000001, RoundBTC(0.000000014))
	assert.Equal(t, 0.1, RoundBTC(0.1))
	assert.InDelta(t, 0.29999999, RoundBTC(0.299999994), 1e-12)
	assert.Equal(t, 0.0, RoundBTC(math.NaN()))
	assert.Equal(t, 0.0, RoundBTC(math.Inf(1)))
}

func TestClampNonNegative(t *testing.T) {
	assert.Equal(t, 0.0, ClampNonNegative(-0.0000001))
	assert.Equal(t, 0.0, ClampNonNegative(0))
	assert.Equal(t, 5.0, ClampNonNegative(5))
}

func TestIsCompletedStatus(t *testing.T) {
	for _, status := range []string{"completed", "Completed", "COMPLETED", "confirmed", "Confirmed", "complete", " completed "} {
		assert.True(t, IsCompletedStatus(status), status)
	}
	for _, status := range []string{"pending", "failed", "rejected", "", "done"} {
		assert.False(t, IsCompletedStatus(status), status)
	}
}

func TestIsOnchainDeposit(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"ExplicitFlag", Transaction{DepositMethod: "onchain"}, true},
		{"FlagCaseInsensitive", Transaction{DepositMethod: "OnChain"}, true},
		{"BTCCurrencyFallback", Transaction{Currency: "BTC"}, true},
		{"DescriptionFallback", Transaction{Description: "On-chain BTC deposit"}, true},
		{"DescriptionNoHyphen", Transaction{Description: "onchain transfer"}, true},
		{"PlainUSDDeposit", Transaction{Currency: "USD", Description: "Savings deposit"}, false},
		{"CollateralDeposit", Transaction{Currency: "USD", Description: "Collateral deposit"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.IsOnchainDeposit())
		})
	}
}
