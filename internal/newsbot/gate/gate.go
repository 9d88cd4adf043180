// Package gate decides whether a classified item is persisted: it applies
// the banned-source policy, the duplicate check and the insert.
package gate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// Outcome is the fate of one item at the gate.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	Blocked
	StoreError
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	case Blocked:
		return "blocked"
	case StoreError:
		return "store_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{Inserted, Duplicate, Blocked, StoreError}
}

// Policy is the banned-source set. Names compare after trimming, lower-casing
// and folding diacritics.
type Policy struct {
	banned map[string]string
}

// NewPolicy builds a Policy from source names.
func NewPolicy(names ...string) *Policy {
	p := &Policy{banned: make(map[string]string, len(names))}
	for _, n := range names {
		if key := news.Fold(n); key != "" {
			p.banned[key] = n
		}
	}
	return p
}

// Blocked reports whether source is banned. A nil Policy bans nothing.
func (p *Policy) Blocked(source string) bool {
	if p == nil || len(p.banned) == 0 {
		return false
	}
	_, ok := p.banned[news.Fold(source)]
	return ok
}

// Names returns the configured names as given, sorted.
func (p *Policy) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.banned))
	for _, n := range p.banned {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Store is the persistence the gate needs.
type Store interface {
	FindDuplicate(ctx context.Context, link, title string) (bool, error)
	Insert(ctx context.Context, item *news.Item) (bool, error)
}

// Gate applies the policy and dedup rules before insert.
type Gate struct {
	store  Store
	policy *Policy
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Gate. A nil policy bans nothing.
func New(store Store, policy *Policy, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, policy: policy, logger: logger, now: time.Now}
}

// WithClock overrides the clock that stamps ScrapedAt.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Policy returns the gate's banned-source policy.
func (g *Gate) Policy() *Policy {
	return g.policy
}

// Accept runs item through the gate. The banned check never touches the
// store. The store's uniqueness constraint backs the duplicate lookup, so a
// concurrent insert of the same link also ends as Duplicate. On StoreError
// the returned error carries the cause.
func (g *Gate) Accept(ctx context.Context, item *news.Item) (Outcome, error) {
	if g.policy.Blocked(item.Source) {
		return Blocked, nil
	}

	dup, err := g.store.FindDuplicate(ctx, item.Link, item.Title)
	if err != nil {
		return StoreError, err
	}
	if dup {
		return Duplicate, nil
	}

	item.ScrapedAt = g.now()
	inserted, err := g.store.Insert(ctx, item)
	switch {
	case storage.IsUniqueViolation(err):
		return Duplicate, nil
	case err != nil:
		return StoreError, err
	case !inserted:
		return Duplicate, nil
	}
	g.logger.Debug("item stored", zap.String("source", item.Source), zap.String("link", item.Link))
	return Inserted, nil
}
