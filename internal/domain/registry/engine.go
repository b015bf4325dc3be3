package registry

import (
	"context"
	"sync"

	"pacadmin/internal/core/deleteid"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/lock"
	"pacadmin/pkg/logger"
)

// Config holds engine configuration. Zero values fall back to production
// defaults.
type Config struct {
	// Collection is the delete-log collection name.
	Collection string

	// Format is the delete-view ID namespace.
	Format deleteid.Format

	// QuarantineRatio trips the system-wide quarantine when the
	// duplicate-group/total ratio exceeds it. Default 0.15.
	QuarantineRatio float64

	// DryRun makes every remediation entry point preview-only.
	DryRun bool

	// Compliance metadata stamped on every fix.
	PolicyVersion string
	Jurisdiction  string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Collection:      Collection,
		Format:          deleteid.DefaultFormat(),
		QuarantineRatio: 0.15,
		PolicyVersion:   "2025.1",
		Jurisdiction:    "IN",
	}
}

func (c Config) withDefaults() Config {
	if c.Collection == "" {
		c.Collection = Collection
	}
	if c.Format.Prefix == "" {
		c.Format = deleteid.DefaultFormat()
	}
	if c.QuarantineRatio <= 0 {
		c.QuarantineRatio = 0.15
	}
	if c.PolicyVersion == "" {
		c.PolicyVersion = "2025.1"
	}
	if c.Jurisdiction == "" {
		c.Jurisdiction = "IN"
	}
	return c
}

// Engine owns all state derived from the latest delete-log snapshot. The
// whole derived state is discarded and rebuilt on every snapshot event, so
// everything the engine reports is consistent as of the last snapshot.
type Engine struct {
	cfg      Config
	store    docstore.Store
	locks    *lock.Manager
	log      *logger.Logger
	observer Observer

	mu            sync.Mutex
	fixInProgress bool

	records       []Record
	usedIDs       map[string]struct{}
	idOrder       []string       // first-encounter order of every seen ID
	dupCounts     map[string]int // per-ID occurrence count
	snapshotCache map[string]Record
	fixQueue      map[string]Job
	queueOrder    []string
	planErr       error
	maxSuffix     int
	stats         Stats
}

// New creates an engine. The observer is optional.
func New(cfg Config, store docstore.Store, locks *lock.Manager, log *logger.Logger, observer Observer) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		cfg:           cfg.withDefaults(),
		store:         store,
		locks:         locks,
		log:           log.WithComponent("registry"),
		observer:      observer,
		usedIDs:       make(map[string]struct{}),
		dupCounts:     make(map[string]int),
		snapshotCache: make(map[string]Record),
		fixQueue:      make(map[string]Job),
	}
}

// Start subscribes to the delete-log collection; every push rebuilds the
// derived state. Returns the unsubscribe function.
func (e *Engine) Start(ctx context.Context) (docstore.Unsubscribe, error) {
	return e.store.Subscribe(ctx, e.cfg.Collection, func(docs []docstore.Document) {
		e.Ingest(docs)
	})
}

// Ingest rebuilds all derived indices from a full collection snapshot.
// Processing is fully synchronous: no store call happens mid-rebuild, so a
// rebuild can never interleave with remediation reads.
func (e *Engine) Ingest(docs []docstore.Document) {
	e.mu.Lock()

	e.records = e.records[:0]
	e.usedIDs = make(map[string]struct{})
	e.idOrder = e.idOrder[:0]
	e.dupCounts = make(map[string]int)
	e.snapshotCache = make(map[string]Record, len(docs))
	e.fixQueue = make(map[string]Job)
	e.queueOrder = e.queueOrder[:0]
	e.planErr = nil
	e.maxSuffix = 0

	var lastDeletedID string
	var lastDeletedAt int64

	for _, d := range docs {
		r := recordFromDocument(d)
		e.records = append(e.records, r)
		e.snapshotCache[r.DocID] = r.clone()

		if r.DeleteViewID != "" {
			if _, seen := e.usedIDs[r.DeleteViewID]; !seen {
				e.idOrder = append(e.idOrder, r.DeleteViewID)
			}
			e.usedIDs[r.DeleteViewID] = struct{}{}
			e.dupCounts[r.DeleteViewID]++

			if n, ok := e.cfg.Format.Suffix(r.DeleteViewID); ok && n > e.maxSuffix {
				e.maxSuffix = n
			}
		}

		if r.DeletedAtTimestamp > 0 && r.DeletedAtTimestamp > lastDeletedAt {
			lastDeletedID = r.DeleteViewID
			lastDeletedAt = r.DeletedAtTimestamp
		}
	}

	total := len(e.records)
	dupGroups := 0
	for _, c := range e.dupCounts {
		if c > 1 {
			dupGroups++
		}
	}

	e.stats = Stats{
		Total:           total,
		DuplicateGroups: dupGroups,
		Health:          computeHealth(total, dupGroups),
		Quarantined:     quarantined(total, dupGroups, e.cfg.QuarantineRatio),
	}
	if lastDeletedAt > 0 {
		e.stats.LastDeletedID = lastDeletedID
		e.stats.LastDeletedAt = lastDeletedAt
	}

	e.planLocked()

	stats := e.stats
	observer := e.observer
	e.mu.Unlock()

	if stats.Quarantined {
		e.log.Errorw("delete registry quarantined",
			"total", stats.Total,
			"duplicate_groups", stats.DuplicateGroups,
		)
	}
	e.log.Debugw("snapshot ingested",
		"total", stats.Total,
		"duplicate_groups", stats.DuplicateGroups,
		"health", stats.Health,
	)

	if observer != nil {
		observer(stats)
	}
}

// planLocked populates the fix queue: for every duplicate group, the first
// record in ingestion order keeps its ID and each remaining record gets a
// freshly allocated one. Recomputing from an unchanged snapshot yields the
// same proposed IDs because the allocator is reseeded identically.
func (e *Engine) planLocked() {
	alloc := deleteid.NewAllocator(e.cfg.Format, e.maxSuffix, e.usedIDs)

	for _, id := range e.idOrder {
		if e.dupCounts[id] < 2 {
			continue
		}
		kept := false
		for _, r := range e.records {
			if r.DeleteViewID != id {
				continue
			}
			if !kept {
				kept = true
				continue
			}
			newID, err := alloc.Next()
			if err != nil {
				// Allocator exhaustion is fatal to the whole plan: a
				// partial queue would remediate some groups and
				// silently strand the rest.
				e.log.Errorw("remediation planning aborted", "error", err)
				e.planErr = err
				return
			}
			job := Job{DocID: r.DocID, PacNo: r.PacNo, OldID: id, NewID: newID}
			e.fixQueue[r.DocID] = job
			e.queueOrder = append(e.queueOrder, r.DocID)
		}
	}
}

// Stats returns the counters derived from the latest snapshot.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Quarantined reports the current quarantine flag.
func (e *Engine) Quarantined() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Quarantined
}

// Duplicates returns duplicate groups in first-encounter order.
func (e *Engine) Duplicates() []DuplicateGroup {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []DuplicateGroup
	for _, id := range e.idOrder {
		if c := e.dupCounts[id]; c > 1 {
			out = append(out, DuplicateGroup{DeleteViewID: id, Count: c})
		}
	}
	return out
}

// GroupRecords returns the records sharing one delete-view ID, in ingestion
// order.
func (e *Engine) GroupRecords(deleteViewID string) []Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Record
	for _, r := range e.records {
		if r.DeleteViewID == deleteViewID {
			out = append(out, r.clone())
		}
	}
	return out
}

// Queue returns the current fix queue in planning order.
func (e *Engine) Queue() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Job, 0, len(e.queueOrder))
	for _, docID := range e.queueOrder {
		out = append(out, e.fixQueue[docID])
	}
	return out
}
