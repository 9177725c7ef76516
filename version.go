package jsonrpc2sock

// ProtocolVersion is written as the jsonrpc member when a message leaves it unset.
const ProtocolVersion = "2.0"

func versionOrDefault(v string) string {
	if v == "" {
		return ProtocolVersion
	}

	return v
}
