package parser

import "context"

// Parser extracts the plain text of one document format. Formatting fidelity
// is out of scope; downstream extraction only needs the raw zone text.
type Parser interface {
	Parse(ctx context.Context, path string) (string, error)
	SupportedFormats() []string
}
