package minutes

import (
	"log/slog"
	"sync"
)

// Listener receives change notifications as updates are merged into
// canonical state. Nil callbacks are skipped.
type Listener struct {
	OnEntry    func(TranscriptEntry) // one call per newly appended entry
	OnQAPairs  func([]QAPair)        // full replacement list
	OnSpeakers func(int)
	OnFinalize func() // fired exactly once per session
}

// Reconciler merges inbound update payloads into canonical session state.
// It is the only writer to that state.
type Reconciler struct {
	logger   *slog.Logger
	listener Listener

	entries       []TranscriptEntry
	seen          map[string]struct{}
	qaPairs       []QAPair
	totalSpeakers int
	completed     bool
	finalized     bool

	// Statistics
	updatesApplied    uint64
	updatesRejected   uint64
	duplicatesDropped uint64
	qaReplacements    uint64

	mu sync.Mutex
}

// Snapshot is a copy of canonical state safe for concurrent consumers
type Snapshot struct {
	Transcript    []TranscriptEntry `json:"transcript"`
	QAPairs       []QAPair          `json:"qa_pairs"`
	TotalSpeakers int               `json:"total_speakers"`
	Completed     bool              `json:"completed"`
}

// Stats represents reconciler statistics
type Stats struct {
	UpdatesApplied    uint64 `json:"updates_applied"`
	UpdatesRejected   uint64 `json:"updates_rejected"`
	DuplicatesDropped uint64 `json:"duplicates_dropped"`
	QAReplacements    uint64 `json:"qa_replacements"`
	EntryCount        int    `json:"entry_count"`
	QAPairCount       int    `json:"qa_pair_count"`
}

// NewReconciler creates a reconciler with the given change listener
func NewReconciler(logger *slog.Logger, listener Listener) *Reconciler {
	return &Reconciler{
		logger:   logger,
		listener: listener,
		seen:     make(map[string]struct{}),
	}
}

// Apply merges one update payload into canonical state.
//
// Transcript entries are appended incrementally with id-based dedup; the
// qa_pairs list, when present, entirely replaces the canonical list; the
// speaker count is last-value-wins; a completed status finalizes the session
// exactly once. A payload carrying an error field is logged and otherwise
// ignored.
func (r *Reconciler) Apply(u *Update) {
	if u == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Error != "" {
		r.updatesRejected++
		r.logger.Warn("Update payload carried an error, ignoring",
			slog.String("error", u.Error),
		)
		return
	}

	r.updatesApplied++

	for _, entry := range u.Transcript {
		if _, dup := r.seen[entry.ID]; dup {
			r.duplicatesDropped++
			continue
		}
		r.seen[entry.ID] = struct{}{}
		r.entries = append(r.entries, entry)

		if r.listener.OnEntry != nil {
			r.listener.OnEntry(entry)
		}
	}

	if u.qaPresent || u.QAPairs != nil {
		r.qaPairs = u.QAPairs
		r.qaReplacements++

		if r.listener.OnQAPairs != nil {
			r.listener.OnQAPairs(r.qaPairs)
		}
	}

	if u.TotalSpeakers != nil {
		r.totalSpeakers = *u.TotalSpeakers

		if r.listener.OnSpeakers != nil {
			r.listener.OnSpeakers(r.totalSpeakers)
		}
	}

	if u.Status == StatusCompleted {
		r.completed = true

		// A second completed signal can arrive via both transports during
		// fallback; only the first one notifies.
		if !r.finalized {
			r.finalized = true

			r.logger.Info("Session completed",
				slog.Int("transcript_entries", len(r.entries)),
				slog.Int("qa_pairs", len(r.qaPairs)),
				slog.Int("total_speakers", r.totalSpeakers),
			)

			if r.listener.OnFinalize != nil {
				r.listener.OnFinalize()
			}
		}
	}
}

// Snapshot returns a copy of canonical state
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	transcript := make([]TranscriptEntry, len(r.entries))
	copy(transcript, r.entries)

	qaPairs := make([]QAPair, len(r.qaPairs))
	copy(qaPairs, r.qaPairs)

	return Snapshot{
		Transcript:    transcript,
		QAPairs:       qaPairs,
		TotalSpeakers: r.totalSpeakers,
		Completed:     r.completed,
	}
}

// Completed reports whether a completed status has been applied
func (r *Reconciler) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// GetStats returns current reconciler statistics
func (r *Reconciler) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		UpdatesApplied:    r.updatesApplied,
		UpdatesRejected:   r.updatesRejected,
		DuplicatesDropped: r.duplicatesDropped,
		QAReplacements:    r.qaReplacements,
		EntryCount:        len(r.entries),
		QAPairCount:       len(r.qaPairs),
	}
}
