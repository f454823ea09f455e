package main

import "errors"

// Start preconditions and command errors. Validation and duplicate errors are
// synchronous and local; backend failures during polls are absorbed at the
// poll boundary and never surface through these.
var (
	errNoAccount         = errors.New("no mining account configured")
	errEngineUnavailable = errors.New("mining engine is not running")
	errSessionActive     = errors.New("mining session already active")

	errDuplicateNode = errors.New("node address already present")
	errUnknownNode   = errors.New("unknown node address")
	errNodeOnline    = errors.New("node is online; disconnect before removing")
)

// Proxy address validation failures. Each carries the specific reason so the
// dashboard can surface it verbatim; none of these ever reach the backend.
var (
	errAddrEmpty        = errors.New("address is empty")
	errAddrWhitespace   = errors.New("address contains whitespace")
	errAddrMissingPort  = errors.New("address is missing a port")
	errAddrPortRange    = errors.New("port must be between 1 and 65535")
	errAddrReservedPort = errors.New("reserved port; only 80 and 443 are allowed below 1024")
	errAddrHost         = errors.New("malformed host")
)
