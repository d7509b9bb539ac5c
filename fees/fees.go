// Package fees estimates the value a caller must attach to a guarded request.
//
// Prices follow the host ledger convention of being scaled by 2^16; all
// arithmetic is done in 256 bits and checked before narrowing to uint64.
package fees

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned when an estimate does not fit in uint64.
var ErrOverflow = errors.New("fees: estimate overflows uint64")

const (
	priceShift = 16
	cellBits   = 1023
)

// Schedule is the cost model. Prices are in nano-units scaled by 2^16; gas
// amounts are raw gas units.
type Schedule struct {
	GasPrice       uint64 `toml:"GasPrice" json:"gas_price"`
	LumpPrice      uint64 `toml:"LumpPrice" json:"lump_price"`
	BitPrice       uint64 `toml:"BitPrice" json:"bit_price"`
	CellPrice      uint64 `toml:"CellPrice" json:"cell_price"`
	GuardGas       uint64 `toml:"GuardGas" json:"guard_gas"`
	WalletGas      uint64 `toml:"WalletGas" json:"wallet_gas"`
	PerOutputGas   uint64 `toml:"PerOutputGas" json:"per_output_gas"`
	PerExtendedGas uint64 `toml:"PerExtendedGas" json:"per_extended_gas"`
}

// Basechain returns the default basechain schedule.
func Basechain() Schedule {
	return Schedule{
		GasPrice:       26214400,
		LumpPrice:      400000,
		BitPrice:       26214400,
		CellPrice:      2621440000,
		GuardGas:       6000,
		WalletGas:      4000,
		PerOutputGas:   800,
		PerExtendedGas: 1500,
	}
}

// Estimate is a fee breakdown. Total is the value to attach.
type Estimate struct {
	GuardCompute  uint64 `json:"guard_compute"`
	Forward       uint64 `json:"forward"`
	WalletCompute uint64 `json:"wallet_compute"`
	Total         uint64 `json:"total"`
}

// Estimate prices a request whose forwarded message is forwardBits long and
// which makes the wallet emit outputs messages and run extended actions.
func (s Schedule) Estimate(forwardBits, outputs, extended uint64) (Estimate, error) {
	guard, err := s.gasFee(uint256.NewInt(s.GuardGas))
	if err != nil {
		return Estimate{}, err
	}
	fwd, err := s.ForwardFee(forwardBits)
	if err != nil {
		return Estimate{}, err
	}

	walletGas := uint256.NewInt(s.WalletGas)
	var term uint256.Int
	if _, over := term.MulOverflow(uint256.NewInt(s.PerOutputGas), uint256.NewInt(outputs)); over {
		return Estimate{}, ErrOverflow
	}
	if _, over := walletGas.AddOverflow(walletGas, &term); over {
		return Estimate{}, ErrOverflow
	}
	if _, over := term.MulOverflow(uint256.NewInt(s.PerExtendedGas), uint256.NewInt(extended)); over {
		return Estimate{}, ErrOverflow
	}
	if _, over := walletGas.AddOverflow(walletGas, &term); over {
		return Estimate{}, ErrOverflow
	}
	wallet, err := s.gasFee(walletGas)
	if err != nil {
		return Estimate{}, err
	}

	total, err := sum(guard, fwd, wallet)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{GuardCompute: guard, Forward: fwd, WalletCompute: wallet, Total: total}, nil
}

// EstimateMessage is Estimate for a forwarded message of len(msg) bytes.
func (s Schedule) EstimateMessage(msg []byte, outputs, extended uint64) (Estimate, error) {
	return s.Estimate(uint64(len(msg))*8, outputs, extended)
}

// ForwardFee is lump + ceil((bit_price*bits + cell_price*cells) / 2^16), with
// cells = ceil(bits/1023) and at least one cell.
func (s Schedule) ForwardFee(bits uint64) (uint64, error) {
	cells := bits / cellBits
	if bits%cellBits != 0 || cells == 0 {
		cells++
	}
	var bitCost, cellCost uint256.Int
	if _, over := bitCost.MulOverflow(uint256.NewInt(s.BitPrice), uint256.NewInt(bits)); over {
		return 0, ErrOverflow
	}
	if _, over := cellCost.MulOverflow(uint256.NewInt(s.CellPrice), uint256.NewInt(cells)); over {
		return 0, ErrOverflow
	}
	if _, over := bitCost.AddOverflow(&bitCost, &cellCost); over {
		return 0, ErrOverflow
	}
	scaled, err := ceilShift(&bitCost)
	if err != nil {
		return 0, err
	}
	if _, over := scaled.AddOverflow(scaled, uint256.NewInt(s.LumpPrice)); over {
		return 0, ErrOverflow
	}
	return narrow(scaled)
}

// GasFee is ceil(gas_price * gas / 2^16).
func (s Schedule) GasFee(gas uint64) (uint64, error) {
	return s.gasFee(uint256.NewInt(gas))
}

func (s Schedule) gasFee(gas *uint256.Int) (uint64, error) {
	var fee uint256.Int
	if _, over := fee.MulOverflow(uint256.NewInt(s.GasPrice), gas); over {
		return 0, ErrOverflow
	}
	scaled, err := ceilShift(&fee)
	if err != nil {
		return 0, err
	}
	return narrow(scaled)
}

func ceilShift(x *uint256.Int) (*uint256.Int, error) {
	round := uint256.NewInt(1<<priceShift - 1)
	out := new(uint256.Int)
	if _, over := out.AddOverflow(x, round); over {
		return nil, ErrOverflow
	}
	return out.Rsh(out, priceShift), nil
}

func narrow(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

func sum(vals ...uint64) (uint64, error) {
	acc := new(uint256.Int)
	for _, v := range vals {
		acc.Add(acc, uint256.NewInt(v))
	}
	return narrow(acc)
}
