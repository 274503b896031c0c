package normalize

import (
	"github.com/swarmlink/orchestrate-go/internal/domain"
)

// DefaultText is returned when every extraction strategy misses.
const DefaultText = "No output data available"

// Options tunes the cascade's thresholds and supplies any externally
// finalized artifact links, which take priority over payload
// extraction.
type Options struct {
	// MinMatchLen rejects regex captures shorter than this many
	// characters, to avoid matching trivial fragments.
	MinMatchLen int
	// TruncateLen bounds the raw-string fallback rendering.
	TruncateLen int
	// FinalizedLinks, when non-empty, short-circuits media extraction.
	FinalizedLinks []domain.ArtifactLink
}

// DefaultOptions returns the thresholds used by the original client.
func DefaultOptions() Options {
	return Options{MinMatchLen: 50, TruncateLen: 500}
}

// Outcome carries the normalized result plus which text strategy
// produced it (1-based cascade index, 0 when the default fired), for
// observability.
type Outcome struct {
	Result       domain.NormalizedResult
	TextStrategy int
}

// Normalize extracts text and media links from a terminal payload.
// It never fails: a payload with nothing extractable yields the
// default text and no links.
func Normalize(p Payload, opts Options) Outcome {
	if opts.TruncateLen <= 0 {
		opts = DefaultOptions()
	}

	text, strategy := extractText(p, opts)

	return Outcome{
		Result: domain.NormalizedResult{
			Text:       text,
			MediaLinks: extractMediaLinks(p, opts),
		},
		TextStrategy: strategy,
	}
}
