// Package tracker implements the Individual Order Tracker: the engine's
// single source of truth for every live position, its hedge role and
// status, and its recovery chain (spec §4.3).
package tracker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"triarb/internal/broker"
	"triarb/internal/errors"
	"triarb/internal/logging"
	"triarb/internal/monitoring"
)

func orderKey(ticket int64, symbol string) string {
	return fmt.Sprintf("%d_%s", ticket, symbol)
}

// legacyRecoveryComment matches RECOVERY_G{n}_{orig}_TO_{hedge}_L{depth}.
var legacyRecoveryComment = regexp.MustCompile(`^RECOVERY_G\d+_([A-Z]{6})_TO_([A-Z]{6})_L\d+$`)

// preferredRecoveryComment matches R{ticket}_{symbol}.
var preferredRecoveryComment = regexp.MustCompile(`^R(\d+)_([A-Z]{6})$`)

// Tracker is the thread-safe key-value store of tracked orders. A single
// mutex guards every read and write, matching the teacher's "one lock for
// all mutation" idiom.
type Tracker struct {
	mu sync.Mutex

	orders       map[string]*Order
	priorityQ    []*PriorityEntry
	stats        Stats
	maxChainDepth int

	store   *Store
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// Config configures chain-depth enforcement and persistence.
type Config struct {
	PersistPath   string
	MaxChainDepth int
}

// New creates a Tracker, loading any existing persisted snapshot.
func New(cfg Config, log *logging.Logger, metrics *monitoring.Metrics) *Tracker {
	t := &Tracker{
		orders:        make(map[string]*Order),
		maxChainDepth: cfg.MaxChainDepth,
		store:         NewStore(cfg.PersistPath, log),
		log:           log,
		metrics:       metrics,
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	snapshot, err := t.store.Load()
	if err != nil {
		if t.log != nil {
			t.log.WithError(err).Warn("order tracking file unreadable, starting empty")
		}
		return
	}
	if snapshot == nil {
		return
	}
	for key, order := range snapshot.OrderTracking {
		o := order
		t.orders[key] = &o
	}
	t.stats = snapshot.Stats
}

func (t *Tracker) persistLocked() {
	snapshot := Snapshot{
		OrderTracking: make(map[string]Order, len(t.orders)),
		Stats:         t.stats,
		SavedAt:       time.Now(),
	}
	for k, v := range t.orders {
		snapshot.OrderTracking[k] = *v
	}
	if err := t.store.Save(snapshot); err != nil && t.log != nil {
		t.log.WithError(err).Error("failed to persist order tracking snapshot")
	}
	t.updateMetricsLocked()
}

func (t *Tracker) updateMetricsLocked() {
	if t.metrics == nil {
		return
	}
	counts := map[OrderStatus]int{}
	var originals, hedgedOriginals int
	for _, o := range t.orders {
		counts[o.Status]++
		if o.Type == TypeOriginal {
			originals++
			if o.Status == StatusHedged {
				hedgedOriginals++
			}
		}
	}
	t.metrics.TrackedOrders.WithLabelValues(string(StatusNotHedged)).Set(float64(counts[StatusNotHedged]))
	t.metrics.TrackedOrders.WithLabelValues(string(StatusHedged)).Set(float64(counts[StatusHedged]))
	t.metrics.TrackedOrders.WithLabelValues(string(StatusOrphaned)).Set(float64(counts[StatusOrphaned]))
	if originals > 0 {
		t.metrics.HedgedRatio.Set(float64(hedgedOriginals) / float64(originals))
	} else {
		t.metrics.HedgedRatio.Set(0)
	}
}

// RegisterOriginal inserts a new ORIGINAL/NOT_HEDGED record. Refused if the
// key already exists.
func (t *Tracker) RegisterOriginal(ticket int64, symbol, groupID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := orderKey(ticket, symbol)
	if _, exists := t.orders[key]; exists {
		return errors.NewAppError(errors.ErrCodeTrackerConflict, "order already tracked", nil).WithContext("key", key)
	}

	now := time.Now()
	t.orders[key] = &Order{
		Ticket:         ticket,
		Symbol:         symbol,
		GroupID:        groupID,
		Type:           TypeOriginal,
		Status:         StatusNotHedged,
		RecoveryOrders: []string{},
		CreatedAt:      now,
		LastSync:       now,
	}
	t.stats.OriginalsRegistered++
	t.persistLocked()
	return nil
}

// RegisterRecovery links a recovery order to its parent. Refused if the
// parent is absent, or if the parent's existing recovery chain already
// reaches the configured maximum depth.
func (t *Tracker) RegisterRecovery(rTicket int64, rSymbol string, oTicket int64, oSymbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parentKey := orderKey(oTicket, oSymbol)
	parent, ok := t.orders[parentKey]
	if !ok {
		return errors.NewAppError(errors.ErrCodeTrackerConflict, "recovery parent not found", nil).WithContext("parent_key", parentKey)
	}

	depth := t.chainDepthLocked(parentKey)
	if t.maxChainDepth > 0 && depth >= t.maxChainDepth {
		return errors.NewAppError(errors.ErrCodeRecoveryChainTooDeep, "recovery chain too deep", nil).
			WithContext("parent_key", parentKey).WithContext("depth", depth)
	}

	childKey := orderKey(rTicket, rSymbol)
	if _, exists := t.orders[childKey]; exists {
		return errors.NewAppError(errors.ErrCodeTrackerConflict, "recovery order already tracked", nil).WithContext("key", childKey)
	}

	now := time.Now()
	t.orders[childKey] = &Order{
		Ticket:         rTicket,
		Symbol:         rSymbol,
		Type:           TypeRecovery,
		Status:         StatusNotHedged,
		RecoveryOrders: []string{},
		HedgingFor:     parentKey,
		CreatedAt:      now,
		LastSync:       now,
	}

	wasHedged := parent.Status == StatusHedged
	parent.Status = StatusHedged
	parent.RecoveryOrders = append(parent.RecoveryOrders, childKey)

	t.stats.RecoveriesRegistered++
	if !wasHedged {
		t.stats.HedgedCount++
	}
	t.persistLocked()
	return nil
}

// chainDepthLocked walks hedging_for ancestors starting at key and counts
// how many recovery links deep key already sits. Must be called with the
// lock held.
func (t *Tracker) chainDepthLocked(key string) int {
	depth := 0
	current := key
	for {
		order, ok := t.orders[current]
		if !ok || order.HedgingFor == "" {
			return depth
		}
		depth++
		current = order.HedgingFor
	}
}

// IsHedged reports whether the order at ticket/symbol is HEDGED.
func (t *Tracker) IsHedged(ticket int64, symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderKey(ticket, symbol)]
	return ok && o.Status == StatusHedged
}

// NeedsRecovery reports whether the order is NOT_HEDGED or ORPHANED.
func (t *Tracker) NeedsRecovery(ticket int64, symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderKey(ticket, symbol)]
	return ok && (o.Status == StatusNotHedged || o.Status == StatusOrphaned)
}

// Get returns a copy of the tracked order, if present.
func (t *Tracker) Get(ticket int64, symbol string) (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderKey(ticket, symbol)]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// All returns a snapshot copy of every tracked order.
func (t *Tracker) All() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, *o)
	}
	return out
}

// Stats returns a copy of the running counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// SyncWithBroker reconciles the tracker against live broker positions
// (spec §4.3). Enumeration failure aborts the sync without mutating state.
func (t *Tracker) SyncWithBroker(ctx context.Context, b broker.Broker) error {
	start := time.Now()
	positions, err := b.GetAllPositions(ctx)
	if err != nil {
		if t.log != nil {
			t.log.WithError(err).Warn("sync_with_broker: position enumeration failed, aborting without mutation")
		}
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	live := make(map[string]broker.Position, len(positions))
	for _, p := range positions {
		live[orderKey(p.Ticket, p.Symbol)] = p
	}

	// Auto-register live positions the tracker doesn't know about.
	for key, pos := range live {
		if _, tracked := t.orders[key]; tracked {
			continue
		}
		t.autoRegisterLocked(key, pos)
	}

	// Reconcile tracked tickets no longer live.
	for key, order := range t.orders {
		if _, stillLive := live[key]; stillLive {
			order.LastSync = time.Now()
			continue
		}
		t.handleClosedLocked(key, order)
	}

	t.stats.SyncOperations++
	t.stats.LastSyncAt = time.Now()
	t.persistLocked()

	if t.metrics != nil {
		t.metrics.TrackerSyncLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

// autoRegisterLocked detects recovery-comment patterns and relinks to a
// parent; if no parent is found it registers as an orphaned recovery, or
// as a plain ORIGINAL if the comment carries no recovery markers.
func (t *Tracker) autoRegisterLocked(key string, pos broker.Position) {
	now := time.Now()

	if rawParentKey, ok := parseRecoveryComment(pos.Comment); ok {
		parentKey := t.resolveParentKeyLocked(rawParentKey)
		if parent, exists := t.orders[parentKey]; exists {
			parent.Status = StatusHedged
			parent.RecoveryOrders = append(parent.RecoveryOrders, key)
			t.orders[key] = &Order{
				Ticket:         pos.Ticket,
				Symbol:         pos.Symbol,
				Type:           TypeRecovery,
				Status:         StatusNotHedged,
				RecoveryOrders: []string{},
				HedgingFor:     parentKey,
				CreatedAt:      now,
				LastSync:       now,
				AutoRegistered: true,
				Comment:        pos.Comment,
			}
			t.stats.RecoveriesRegistered++
			if t.log != nil {
				t.log.WithField("key", key).WithField("parent", parentKey).Info("auto-registered recovery order")
			}
			return
		}

		t.orders[key] = &Order{
			Ticket:         pos.Ticket,
			Symbol:         pos.Symbol,
			Type:           TypeRecovery,
			Status:         StatusOrphaned,
			RecoveryOrders: []string{},
			CreatedAt:      now,
			LastSync:       now,
			AutoRegistered: true,
			Comment:        pos.Comment,
		}
		if t.log != nil {
			t.log.WithField("key", key).Warn("auto-registered recovery order as orphaned, parent not found")
		}
		return
	}

	t.orders[key] = &Order{
		Ticket:         pos.Ticket,
		Symbol:         pos.Symbol,
		Type:           TypeOriginal,
		Status:         StatusNotHedged,
		RecoveryOrders: []string{},
		CreatedAt:      now,
		LastSync:       now,
		AutoRegistered: true,
		Comment:        pos.Comment,
	}
	t.stats.OriginalsRegistered++
}

// resolveParentKeyLocked resolves a parsed parent reference to an actual
// order key. Preferred-form references are already a concrete key; legacy
// "symbol:XXX" references are resolved against the single tracked ORIGINAL
// for that symbol, if exactly one exists.
func (t *Tracker) resolveParentKeyLocked(ref string) string {
	const symbolPrefix = "symbol:"
	if len(ref) <= len(symbolPrefix) || ref[:len(symbolPrefix)] != symbolPrefix {
		return ref
	}
	symbol := ref[len(symbolPrefix):]
	var match string
	matches := 0
	for key, o := range t.orders {
		if o.Symbol == symbol && o.Type == TypeOriginal {
			match = key
			matches++
		}
	}
	if matches == 1 {
		return match
	}
	return ref
}

// handleClosedLocked removes a key no longer live on the broker and
// propagates the removal to its parent/children.
func (t *Tracker) handleClosedLocked(key string, order *Order) {
	if order.Type == TypeOriginal && order.Status == StatusHedged {
		for _, childKey := range order.RecoveryOrders {
			if child, ok := t.orders[childKey]; ok {
				child.Status = StatusOrphaned
			}
		}
	}
	if order.Type == TypeRecovery && order.HedgingFor != "" {
		if parent, ok := t.orders[order.HedgingFor]; ok {
			parent.Status = StatusNotHedged
			parent.RecoveryOrders = removeString(parent.RecoveryOrders, key)
		}
	}

	delete(t.orders, key)
	t.stats.RemovedCount++
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// parseRecoveryComment extracts the parent order key from a broker
// comment, supporting both the preferred R{ticket}_{symbol} form and the
// legacy RECOVERY_G{n}_{orig}_TO_{hedge}_L{depth} form (spec §6.1).
// The legacy form only carries the symbol, not a ticket, so it can only
// be resolved to a parent if exactly one tracked ORIGINAL order exists for
// that symbol; callers needing stricter resolution should prefer the new form.
func parseRecoveryComment(comment string) (string, bool) {
	if m := preferredRecoveryComment.FindStringSubmatch(comment); m != nil {
		ticket, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return "", false
		}
		return orderKey(ticket, m[2]), true
	}
	if m := legacyRecoveryComment.FindStringSubmatch(comment); m != nil {
		// Legacy comments carry the original symbol but not its ticket;
		// the caller resolves this against tracked orders for that symbol.
		return "symbol:" + m[1], true
	}
	return "", false
}

// AddToPriorityQueue inserts or replaces an entry by key and keeps the
// queue sorted descending by score.
func (t *Tracker) AddToPriorityQueue(key string, score float64, data interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.priorityQ {
		if e.OrderKey == key {
			t.priorityQ = append(t.priorityQ[:i], t.priorityQ[i+1:]...)
			break
		}
	}
	t.priorityQ = append(t.priorityQ, &PriorityEntry{OrderKey: key, Priority: score, Data: data, AddedAt: time.Now()})
	sort.SliceStable(t.priorityQ, func(i, j int) bool { return t.priorityQ[i].Priority > t.priorityQ[j].Priority })
}

// PopPriority removes and returns the highest-scored entry, or false if
// the queue is empty.
func (t *Tracker) PopPriority() (PriorityEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.priorityQ) == 0 {
		return PriorityEntry{}, false
	}
	head := t.priorityQ[0]
	t.priorityQ = t.priorityQ[1:]
	return *head, true
}
