package model

// AllowPattern is an anchored regular expression describing one permitted full command shape.
type AllowPattern struct {
	// Expr is the regular expression, anchored with ^ and $.
	Expr string
	// Description is a short human readable explanation (optional).
	Description string
}

// AllowlistSnapshot is the read-only view of the configured allow patterns.
type AllowlistSnapshot struct {
	Patterns []AllowPattern
	Count    int
}
