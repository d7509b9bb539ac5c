package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForwardFee(t *testing.T) {
	s := Schedule{LumpPrice: 100, BitPrice: 1 << 16, CellPrice: 10 << 16}

	// Zero bits still pays for one cell.
	fee, err := s.ForwardFee(0)
	require.NoError(t, err)
	require.Equal(t, uint64(100+10), fee)

	fee, err = s.ForwardFee(1023)
	require.NoError(t, err)
	require.Equal(t, uint64(100+1023+10), fee)

	fee, err = s.ForwardFee(1024)
	require.NoError(t, err)
	require.Equal(t, uint64(100+1024+20), fee)

	// Fractions round up.
	s = Schedule{BitPrice: 1}
	fee, err = s.ForwardFee(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee)
}

func TestGasFeeRoundsUp(t *testing.T) {
	// 1.5 units per gas: 3 gas cost exactly 4.5 units.
	s := Schedule{GasPrice: 3 << 15}
	fee, err := s.GasFee(3)
	require.NoError(t, err)
	require.Equal(t, uint64(5), fee)

	fee, err = s.GasFee(2)
	require.NoError(t, err)
	require.Equal(t, uint64(3), fee)

	fee, err = Schedule{GasPrice: 1}.GasFee(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee)

	fee, err = s.GasFee(0)
	require.NoError(t, err)
	require.Zero(t, fee)
}

func TestEstimateNeverUnderFunds(t *testing.T) {
	s := Schedule{
		GasPrice:       (1 << 16) + 1,
		LumpPrice:      1,
		BitPrice:       3,
		CellPrice:      5,
		GuardGas:       7,
		WalletGas:      11,
		PerOutputGas:   13,
		PerExtendedGas: 17,
	}
	est, err := s.Estimate(100, 2, 1)
	require.NoError(t, err)
	// Exact costs scaled by 2^16, compared without division.
	guardExact := s.GasPrice * s.GuardGas
	walletExact := s.GasPrice * (s.WalletGas + 2*s.PerOutputGas + s.PerExtendedGas)
	require.GreaterOrEqual(t, est.GuardCompute<<16, guardExact)
	require.GreaterOrEqual(t, est.WalletCompute<<16, walletExact)
	require.Equal(t, uint64(8), est.GuardCompute)
	require.Equal(t, uint64(55), est.WalletCompute)
}

func TestEstimateBreakdown(t *testing.T) {
	s := Schedule{
		GasPrice:       2 << 16,
		LumpPrice:      1000,
		BitPrice:       1 << 16,
		CellPrice:      100 << 16,
		GuardGas:       10,
		WalletGas:      20,
		PerOutputGas:   5,
		PerExtendedGas: 7,
	}
	est, err := s.Estimate(800, 3, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(20), est.GuardCompute)
	require.Equal(t, uint64(1000+800+100), est.Forward)
	require.Equal(t, uint64(2*(20+15+14)), est.WalletCompute)
	require.Equal(t, est.GuardCompute+est.Forward+est.WalletCompute, est.Total)

	byMsg, err := s.EstimateMessage(make([]byte, 100), 3, 2)
	require.NoError(t, err)
	require.Equal(t, est, byMsg)
}

func TestEstimateMonotonic(t *testing.T) {
	s := Basechain()
	a, err := s.Estimate(1000, 1, 0)
	require.NoError(t, err)
	b, err := s.Estimate(1000, 2, 0)
	require.NoError(t, err)
	c, err := s.Estimate(1000, 2, 1)
	require.NoError(t, err)
	require.Less(t, a.Total, b.Total)
	require.Less(t, b.Total, c.Total)
	require.NotZero(t, a.GuardCompute)
}

func TestOverflow(t *testing.T) {
	s := Schedule{GasPrice: math.MaxUint64, GuardGas: math.MaxUint64}
	_, err := s.Estimate(0, 0, 0)
	require.ErrorIs(t, err, ErrOverflow)

	s = Schedule{LumpPrice: math.MaxUint64, CellPrice: 1 << 16}
	_, err = s.ForwardFee(0)
	require.ErrorIs(t, err, ErrOverflow)

	s = Schedule{GasPrice: 1 << 16, WalletGas: math.MaxUint64, PerOutputGas: math.MaxUint64}
	_, err = s.Estimate(0, math.MaxUint64, 0)
	require.ErrorIs(t, err, ErrOverflow)

	s = Schedule{GasPrice: 1 << 16, GuardGas: math.MaxUint64, WalletGas: math.MaxUint64}
	_, err = s.Estimate(0, 0, 0)
	require.ErrorIs(t, err, ErrOverflow)
}
