package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	chainParamsMu sync.RWMutex
	chainParams   = &chaincfg.MainNetParams
)

// SetChainParams selects the network used for payout account validation.
func SetChainParams(network string) {
	params := &chaincfg.MainNetParams
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "testnet3", "testnet":
		params = &chaincfg.TestNet3Params
	case "signet":
		params = &chaincfg.SigNetParams
	case "regtest":
		params = &chaincfg.RegressionNetParams
	}
	chainParamsMu.Lock()
	chainParams = params
	chainParamsMu.Unlock()
}

func currentChainParams() *chaincfg.Params {
	chainParamsMu.RLock()
	defer chainParamsMu.RUnlock()
	return chainParams
}

// validateAccountAddress performs local validation of the payout account
// before any engine call. Supports base58 and bech32/bech32m destinations
// for the configured network.
func validateAccountAddress(account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return errNoAccount
	}
	params := currentChainParams()
	decoded, err := btcutil.DecodeAddress(account, params)
	if err != nil {
		return fmt.Errorf("decode account address: %w", err)
	}
	if !decoded.IsForNet(params) {
		return errors.New("account address is not valid for " + params.Name)
	}
	return nil
}
