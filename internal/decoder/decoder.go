package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

// Result of decoding one instruction payload. Exactly one of URI or
// FallbackToken is meaningful: a found content URI, or the marker that the
// payload carries no creator metadata at all (wrapped native assets and
// similar housekeeping mints).
type Result struct {
	URI           string
	FallbackToken bool
}

var (
	ipfsPattern    = regexp.MustCompile(`ipfs://[a-zA-Z0-9]+`)
	arweavePattern = regexp.MustCompile(`https://arweave\.net/[a-zA-Z0-9]+`)
)

const (
	maxNameLen   = 32
	maxSymbolLen = 10
	maxURILen    = 200
)

// Decode extracts a content URI from a raw instruction payload. Minting
// programs encode their instructions in incompatible ways, so it layers
// attempts from cheapest and most lenient to strictest:
//
//  1. scan the payload as plain text for a URI
//  2. base64-decode (fixing missing padding) and rescan
//  3. interpret the decoded bytes as a length-prefixed metadata record
//  4. base58-decode and rescan
//
// When nothing matches, the payload is treated as a token without social
// metadata rather than an error.
func Decode(data string) Result {
	if uri := scanURI(data); uri != "" {
		return Result{URI: uri}
	}

	if decoded, ok := decodeBase64(data); ok {
		if uri := scanURI(string(decoded)); uri != "" {
			return Result{URI: uri}
		}
		if uri := parseMetadataRecord(decoded); uri != "" {
			return Result{URI: uri}
		}
	}

	if decoded, err := base58.Decode(data); err == nil {
		if uri := scanURI(string(decoded)); uri != "" {
			return Result{URI: uri}
		}
		if uri := parseMetadataRecord(decoded); uri != "" {
			return Result{URI: uri}
		}
	}

	return Result{FallbackToken: true}
}

func scanURI(s string) string {
	if m := ipfsPattern.FindString(s); m != "" {
		return m
	}
	return arweavePattern.FindString(s)
}

func decodeBase64(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// parseMetadataRecord tries the fixed layout used by the common metadata
// program: a discriminator, then length-prefixed name, symbol, and uri
// strings, then a fee in basis points. The discriminator width varies by
// instruction version, so a few offsets are probed. Best effort only.
func parseMetadataRecord(data []byte) string {
	for _, offset := range []int{1, 8} {
		if uri, ok := recordAt(data, offset); ok {
			return uri
		}
	}
	return ""
}

func recordAt(data []byte, offset int) (string, bool) {
	_, rest, ok := lengthPrefixed(data, offset, maxNameLen)
	if !ok {
		return "", false
	}
	_, rest, ok = lengthPrefixed(data, rest, maxSymbolLen)
	if !ok {
		return "", false
	}
	uri, _, ok := lengthPrefixed(data, rest, maxURILen)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(uri, "http") && !strings.HasPrefix(uri, "ipfs://") && !strings.HasPrefix(uri, "ar://") {
		return "", false
	}
	return uri, true
}

func lengthPrefixed(data []byte, offset, maxLen int) (string, int, bool) {
	if offset < 0 || offset+4 > len(data) {
		return "", 0, false
	}
	n := int(binary.LittleEndian.Uint32(data[offset:]))
	if n == 0 || n > maxLen || offset+4+n > len(data) {
		return "", 0, false
	}
	return string(data[offset+4 : offset+4+n]), offset + 4 + n, true
}
