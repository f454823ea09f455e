//go:build !nojsonsimd

package main

import "github.com/bytedance/sonic"

// sonic backend for the JSON hot paths: rpc envelopes, cached status views,
// credit archive lines. Build with -tags nojsonsimd on platforms sonic does
// not support.

func fastJSONMarshal(v interface{}) ([]byte, error) {
	return sonic.ConfigDefault.Marshal(v)
}

func fastJSONUnmarshal(data []byte, v interface{}) error {
	return sonic.ConfigDefault.Unmarshal(data, v)
}
