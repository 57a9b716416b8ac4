package services

import (
	"sort"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/logger"
)

// PrunerConfig bounds the context assembled from retrieved documents.
type PrunerConfig struct {
	// TokenBudget is the total token budget for all documents.
	TokenBudget int

	// MaxDocs caps the number of documents. 0 disables the cap.
	MaxDocs int

	// MaxDocTokens caps the token length of a single document. Documents
	// over the cap are removed first, longest outlier per round.
	// 0 disables the cap.
	MaxDocTokens int
}

// Pruner enforces the token budget over a retrieved working set while
// protecting hard/soft diversity.
//
// Removal order per round: over-length outliers first, then the
// lowest-scoring soft document while more than one soft remains, then
// the lowest-scoring hard document while more than one hard remains,
// and as a last resort the single longest remaining document. The loop
// is bounded to the initial document count plus one, so pruning always
// terminates; hitting the bound with the budget still exceeded is not an
// error and the remaining set is used as-is.
//
// The diversity invariant: pruning never removes the last member of one
// class while the other class still has more than one member.
type Pruner struct {
	tokenizer driven.Tokenizer
	cfg       PrunerConfig
}

// DefaultTokenBudget is used when the config leaves the budget unset.
const DefaultTokenBudget = 3000

// NewPruner creates a pruner with the given tokenizer and limits.
func NewPruner(tokenizer driven.Tokenizer, cfg PrunerConfig) *Pruner {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	return &Pruner{tokenizer: tokenizer, cfg: cfg}
}

// Prune converts retrieved documents into the final working set.
// The result is sorted by descending score with doc numbers 1..k, total
// token length within the budget whenever the iteration bound allows,
// and the count cap applied.
func (p *Pruner) Prune(retrieved []domain.RetrievedDocument) []domain.ParsedDocument {
	docs := p.parse(retrieved)
	if len(docs) == 0 {
		return docs
	}

	// Bounded: each round removes exactly one document, and one extra
	// round lets the final state be re-checked.
	maxRounds := len(docs) + 1
	round := 0

	for total := totalTokens(docs); total > p.cfg.TokenBudget; total = totalTokens(docs) {
		if round >= maxRounds {
			logger.Warn("prune: iteration bound reached with %d tokens over budget %d, using remaining %d documents",
				total-p.cfg.TokenBudget, p.cfg.TokenBudget, len(docs))
			break
		}
		round++

		removed := p.removeOne(docs)
		if removed < 0 {
			break
		}
		logger.Debug("prune: round %d removed doc_num=%d score=%.3f tokens=%d",
			round, docs[removed].DocNum, docs[removed].Score, docs[removed].TokenCount)

		docs = append(docs[:removed], docs[removed+1:]...)
		renumber(docs)
	}

	// Count cap: only the diversity rules apply, token lengths are
	// ignored here.
	if p.cfg.MaxDocs > 0 {
		for len(docs) > p.cfg.MaxDocs {
			removed := p.removeByClass(docs)
			if removed < 0 {
				break
			}
			docs = append(docs[:removed], docs[removed+1:]...)
			renumber(docs)
		}
	}

	return docs
}

// parse computes token counts, sorts by descending score (stable, ties
// keep retrieval order) and assigns initial doc numbers.
func (p *Pruner) parse(retrieved []domain.RetrievedDocument) []domain.ParsedDocument {
	docs := make([]domain.ParsedDocument, 0, len(retrieved))
	for _, rd := range retrieved {
		docs = append(docs, domain.ParsedDocument{
			RetrievedDocument: rd,
			TokenCount:        p.tokenizer.Count(rd.Content),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	renumber(docs)

	return docs
}

// removeOne picks the index to remove for one budget round, or -1 when
// nothing can be removed.
func (p *Pruner) removeOne(docs []domain.ParsedDocument) int {
	if len(docs) == 0 {
		return -1
	}

	// Rule (a): single longest over-length outlier first.
	if p.cfg.MaxDocTokens > 0 {
		outlier := -1
		for i, d := range docs {
			if d.TokenCount <= p.cfg.MaxDocTokens {
				continue
			}
			if outlier < 0 || d.TokenCount > docs[outlier].TokenCount {
				outlier = i
			}
		}
		if outlier >= 0 {
			return outlier
		}
	}

	// Rules (b)/(c): lowest-scoring member of whichever class can spare
	// one.
	if idx := p.removeByClass(docs); idx >= 0 {
		return idx
	}

	// Rule (d): both classes are singletons (or one document total);
	// drop the longest document as a last resort.
	longest := 0
	for i, d := range docs {
		if d.TokenCount > docs[longest].TokenCount {
			longest = i
		}
	}
	return longest
}

// removeByClass applies the diversity rules: the lowest-scoring soft
// document while more than one soft remains, else the lowest-scoring
// hard document while more than one hard remains. Returns -1 when both
// classes are at or below one member.
func (p *Pruner) removeByClass(docs []domain.ParsedDocument) int {
	if idx := lowestOfClass(docs, domain.DocTypeSoft); idx >= 0 {
		return idx
	}
	return lowestOfClass(docs, domain.DocTypeHard)
}

// lowestOfClass returns the index of the lowest-scoring document of the
// class, but only when the class has more than one member.
func lowestOfClass(docs []domain.ParsedDocument, class domain.DocType) int {
	count := 0
	lowest := -1
	for i, d := range docs {
		if d.DocType != class {
			continue
		}
		count++
		if lowest < 0 || d.Score < docs[lowest].Score {
			lowest = i
		}
	}
	if count <= 1 {
		return -1
	}
	return lowest
}

// renumber reassigns doc numbers 1..k over the score-descending slice.
// Doc numbers are positional, never stable identifiers.
func renumber(docs []domain.ParsedDocument) {
	for i := range docs {
		docs[i].DocNum = i + 1
	}
}

// totalTokens sums the token counts of the working set.
func totalTokens(docs []domain.ParsedDocument) int {
	total := 0
	for _, d := range docs {
		total += d.TokenCount
	}
	return total
}
