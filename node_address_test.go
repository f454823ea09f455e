package main

import (
	"errors"
	"testing"
)

func TestValidateNodeAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
		wantErr error
	}{
		{"empty", "", errAddrEmpty},
		{"spaces only", "   ", errAddrEmpty},
		{"embedded whitespace", "relay 1.example.com:9000", errAddrWhitespace},
		{"tab", "relay\t.example.com:9000", errAddrWhitespace},
		{"missing port", "relay.example.com", errAddrMissingPort},
		{"port zero", "relay.example.com:0", errAddrPortRange},
		{"port too large", "relay.example.com:70000", errAddrPortRange},
		{"port not numeric", "relay.example.com:abc", errAddrPortRange},
		{"reserved port", "relay.example.com:22", errAddrReservedPort},
		{"http exception", "relay.example.com:80", nil},
		{"https exception", "relay.example.com:443", nil},
		{"ipv4", "10.1.2.3:9000", nil},
		{"ipv6", "[2001:db8::1]:9000", nil},
		{"hostname", "relay-3.nodes.example.com:18443", nil},
		{"first unreserved port", "relay.example.com:1024", nil},
		{"max port", "relay.example.com:65535", nil},
		{"bad host label", "-bad-.example.com:9000", errAddrHost},
		{"empty host", ":9000", errAddrHost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateNodeAddress(tc.address)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("validateNodeAddress(%q) = %v, want nil", tc.address, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("validateNodeAddress(%q) = %v, want %v", tc.address, err, tc.wantErr)
			}
		})
	}
}
