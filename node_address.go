package main

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// validateNodeAddress checks proxy node address syntax. Failures are
// rejected before any backend call and each returns its specific reason.
func validateNodeAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return errAddrEmpty
	}
	if strings.ContainsAny(address, " \t\r\n") {
		return errAddrWhitespace
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		var aerr *net.AddrError
		if errors.As(err, &aerr) && strings.Contains(aerr.Err, "missing port") {
			return errAddrMissingPort
		}
		return errAddrHost
	}
	if portStr == "" {
		return errAddrMissingPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < minNodePort || port > maxNodePort {
		return errAddrPortRange
	}
	if port < reservedPortCeiling && port != 80 && port != 443 {
		return errAddrReservedPort
	}
	if !validNodeHost(host) {
		return errAddrHost
	}
	return nil
}

func validNodeHost(host string) bool {
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return true
	}
	// Hostname: dot-separated labels of letters, digits and interior hyphens.
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			case r == '-':
			default:
				return false
			}
		}
	}
	return true
}
