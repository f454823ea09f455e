//go:build nojsonsimd

package main

import "encoding/json"

// encoding/json fallback, selected by the nojsonsimd build tag.

func fastJSONMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func fastJSONUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
