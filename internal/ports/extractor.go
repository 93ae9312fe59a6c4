package ports

import (
	"context"

	"janmat/internal/domain/parse"
)

// Extractor is one extraction strategy. Extract never returns a Go error:
// failure modes are encoded in the PartialResult status so the consensus
// engine can merge exhaustively.
type Extractor interface {
	Source() parse.Source
	Extract(ctx context.Context, text string) parse.PartialResult
}
