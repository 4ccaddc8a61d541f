package newsletter

import (
	"fmt"
	"sort"
)

// RecordState is the per-document lifecycle state within one run.
type RecordState string

const (
	StatePending   RecordState = "pending"
	StateIncluded  RecordState = "included"
	StateExcluded  RecordState = "excluded"
	StateDelivered RecordState = "delivered"
	StateFailed    RecordState = "failed"
)

var allowedTransitions = map[RecordState][]RecordState{
	StatePending:  {StateIncluded, StateExcluded, StateFailed},
	StateIncluded: {StateDelivered, StateFailed},
	StateExcluded: {StateFailed},
}

// ProcessingRecord tracks one document through a run. It is in-memory only;
// the mailbox labels stay the durable record.
type ProcessingRecord struct {
	DocumentID string
	State      RecordState
	Reason     string
	Outcome    ArtifactKind
}

// Ledger holds the processing records of a run.
type Ledger struct {
	records map[string]*ProcessingRecord
	order   []string
}

// NewLedger creates Pending records for the fetched documents.
func NewLedger(docs []Document) *Ledger {
	l := &Ledger{records: make(map[string]*ProcessingRecord, len(docs))}
	for _, doc := range docs {
		if _, ok := l.records[doc.ID]; ok {
			continue
		}
		l.records[doc.ID] = &ProcessingRecord{DocumentID: doc.ID, State: StatePending}
		l.order = append(l.order, doc.ID)
	}
	return l
}

// Transition moves a record to next, rejecting moves the lifecycle forbids.
func (l *Ledger) Transition(id string, next RecordState, reason string) error {
	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("record %s: unknown document", id)
	}
	if rec.State == next {
		return nil
	}
	for _, allowed := range allowedTransitions[rec.State] {
		if allowed == next {
			rec.State = next
			if reason != "" {
				rec.Reason = reason
			}
			return nil
		}
	}
	return fmt.Errorf("record %s: invalid transition %s -> %s", id, rec.State, next)
}

// ApplySelection moves fetched records to Included or Excluded. Overflow
// documents are included as bonus topics.
func (l *Ledger) ApplySelection(sel Selection) error {
	for _, r := range sel.Included {
		if err := l.Transition(r.Document.ID, StateIncluded, ""); err != nil {
			return err
		}
	}
	for _, r := range sel.Overflow {
		if err := l.Transition(r.Document.ID, StateIncluded, "bonus topic"); err != nil {
			return err
		}
	}
	for _, e := range sel.Excluded {
		if err := l.Transition(e.Document.ID, StateExcluded, string(e.Reason)); err != nil {
			return err
		}
	}
	return nil
}

// MarkDelivered records the delivery outcome for every included document.
func (l *Ledger) MarkDelivered(outcome ArtifactKind) {
	for _, id := range l.order {
		rec := l.records[id]
		if rec.State == StateIncluded {
			rec.State = StateDelivered
			rec.Outcome = outcome
		}
	}
}

// MarkFailed fails every record that has not reached a terminal state.
func (l *Ledger) MarkFailed(reason string) {
	for _, id := range l.order {
		rec := l.records[id]
		if rec.State == StatePending || rec.State == StateIncluded {
			rec.State = StateFailed
			rec.Reason = reason
		}
	}
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id string) (ProcessingRecord, bool) {
	rec, ok := l.records[id]
	if !ok {
		return ProcessingRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records in fetch order.
func (l *Ledger) Records() []ProcessingRecord {
	out := make([]ProcessingRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.records[id])
	}
	return out
}

// Counts tallies records by state.
func (l *Ledger) Counts() map[RecordState]int {
	counts := make(map[RecordState]int, 5)
	for _, rec := range l.records {
		counts[rec.State]++
	}
	return counts
}

// IDsIn returns the ids currently in any of the given states, sorted.
func (l *Ledger) IDsIn(states ...RecordState) []string {
	var ids []string
	for id, rec := range l.records {
		for _, s := range states {
			if rec.State == s {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}
