package driving

import (
	"context"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// Answerer turns a natural-language question into a grounded answer with
// resolved citations. One call runs the full query pipeline: embed,
// retrieve, prune, assemble, complete, resolve.
type Answerer interface {
	// Ask answers the question against the active namespace.
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}
