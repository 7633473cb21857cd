package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrInvalidAddress   = errors.New("invalid address")
)

// tronVersion is the base58check version byte of TRON mainnet addresses.
const tronVersion = 0x41

var evmChains = map[string]bool{
	"ETH":      true,
	"BSC":      true,
	"POLYGON":  true,
	"ARBITRUM": true,
	"OPTIMISM": true,
	"BASE":     true,
	"AVAX":     true,
}

// Validator checks withdrawal destinations before they reach the provider.
type Validator struct {
	btcNet *chaincfg.Params
}

func NewValidator(btcNet *chaincfg.Params) *Validator {
	if btcNet == nil {
		btcNet = &chaincfg.MainNetParams
	}
	return &Validator{btcNet: btcNet}
}

// Validate returns nil if addr is well formed for chain.
func (v *Validator) Validate(chain, addr string) error {
	chain = strings.ToUpper(strings.TrimSpace(chain))
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	switch {
	case evmChains[chain]:
		if !common.IsHexAddress(addr) || !strings.HasPrefix(addr, "0x") {
			return fmt.Errorf("%w: %s is not a hex address", ErrInvalidAddress, addr)
		}
		return nil
	case chain == "BTC":
		decoded, err := btcutil.DecodeAddress(addr, v.btcNet)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !decoded.IsForNet(v.btcNet) {
			return fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, addr, v.btcNet.Name)
		}
		return nil
	case chain == "TRX" || chain == "TRON":
		payload, version, err := base58.CheckDecode(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if version != tronVersion || len(payload) != 20 {
			return fmt.Errorf("%w: %s is not a TRON address", ErrInvalidAddress, addr)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
}
