package model

// TokenMetadata is the resolved descriptive record for a mint, built from
// the off-chain JSON document. Immutable once built.
type TokenMetadata struct {
	Address       string
	Name          string
	Symbol        string
	Description   string
	ImageURL      string
	TwitterHandle string
}

// Usable reports whether the record carries enough data for downstream
// stages. Name and symbol are mandatory; the handle is not.
func (m *TokenMetadata) Usable() bool {
	return m != nil && m.Name != "" && m.Symbol != ""
}
