package proxytrust

const (
	securityEventUntrustedPeer      = "untrusted_peer"
	securityEventNoPeerAddress      = "no_peer_address"
	securityEventMalformedForwarded = "malformed_forwarded"
	securityEventChainTooLong       = "chain_too_long"
	securityEventInvalidChainHop    = "invalid_chain_hop"
	securityEventObfuscatedHop      = "obfuscated_hop"
	securityEventHeadersStripped    = "headers_stripped"
)

// sourceRemoteAddr labels resolutions that never consulted a chain header.
const sourceRemoteAddr = "remote_addr"
