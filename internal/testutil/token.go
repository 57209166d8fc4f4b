package testutil

// FixedTokenGenerator generates the same activation token every time.
//
// Activations stamped with a FixedTokenGenerator produce byte-identical
// logs and snapshots, which golden comparisons rely on.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a fixed token generator. An empty token
// becomes "test-activation-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-activation-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
