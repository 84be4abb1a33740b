package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vecmatch/vecmatch/metadata"
)

// Compile-time check to ensure Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

// row pairs a record with its dense row identifier.
type row struct {
	rec Record
	id  uint32
}

// memState holds the immutable state of the store for lock-free reads.
type memState struct {
	rows      []*row // dense by row id; nil entries are tombstones
	free      []uint32
	byID      map[string]uint32
	meta      *metadata.InvertedIndex
	dimension int // 0 until fixed by construction or first insert
	live      int
}

// Memory is an in-memory collection backend.
//
// It uses a copy-on-write pattern: readers load an immutable state snapshot
// through an atomic pointer while a single mutex serializes writers. A
// query therefore never observes a partially applied mutation, and BulkLoad
// commits all-or-nothing by publishing a single new state.
type Memory struct {
	state   atomic.Pointer[memState]
	writeMu sync.Mutex
}

// NewMemory creates a new in-memory collection.
//
// dimension may be 0, in which case the collection dimension is fixed by the
// first successful insert.
func NewMemory(dimension int) (*Memory, error) {
	if dimension < 0 {
		return nil, fmt.Errorf("store: invalid dimension: %d", dimension)
	}

	m := &Memory{}
	m.state.Store(&memState{
		byID:      make(map[string]uint32),
		meta:      metadata.NewInvertedIndex(),
		dimension: dimension,
	})
	return m, nil
}

// MetaIndex returns the inverted metadata index of the currently published
// state. The index is versioned with the record state: it never reflects a
// mutation that is not yet visible through Snapshot.
func (m *Memory) MetaIndex() *metadata.InvertedIndex {
	return m.state.Load().meta
}

// Dimension returns the collection dimension, or 0 if not yet fixed.
func (m *Memory) Dimension() int {
	return m.state.Load().dimension
}

// Len implements Store.
func (m *Memory) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.state.Load().live, nil
}

func cloneMemState(st *memState) *memState {
	newRows := make([]*row, len(st.rows))
	copy(newRows, st.rows)

	newFree := make([]uint32, len(st.free))
	copy(newFree, st.free)

	newByID := make(map[string]uint32, len(st.byID))
	for k, v := range st.byID {
		newByID[k] = v
	}

	return &memState{
		rows:      newRows,
		free:      newFree,
		byID:      newByID,
		meta:      st.meta.Clone(),
		dimension: st.dimension,
		live:      st.live,
	}
}

// validate checks the record against the (possibly still unfixed) dimension.
func validate(rec Record, dimension int) error {
	if rec.ID == "" {
		return &ErrEmptyID{}
	}
	if len(rec.Vector) == 0 {
		return &ErrDimensionMismatch{Expected: dimension, Actual: 0}
	}
	if dimension > 0 && len(rec.Vector) != dimension {
		return &ErrDimensionMismatch{Expected: dimension, Actual: len(rec.Vector)}
	}
	return rec.Metadata.Validate()
}

// applyInsert places rec into st, reusing a free row if available.
// The caller must hold writeMu and have validated rec.
func applyInsert(st *memState, rec Record) uint32 {
	stored := Record{
		ID:       rec.ID,
		Vector:   slices.Clone(rec.Vector),
		Metadata: metadata.CloneIfNeeded(rec.Metadata),
	}

	var rowID uint32
	if len(st.free) > 0 {
		rowID = st.free[len(st.free)-1]
		st.free = st.free[:len(st.free)-1]
		st.rows[rowID] = &row{rec: stored, id: rowID}
	} else {
		rowID = uint32(len(st.rows))
		st.rows = append(st.rows, &row{rec: stored, id: rowID})
	}
	st.byID[rec.ID] = rowID
	st.live++
	return rowID
}

// Insert implements Store.
func (m *Memory) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.state.Load()
	if _, exists := st.byID[rec.ID]; exists {
		return &ErrDuplicateID{ID: rec.ID}
	}
	if err := validate(rec, st.dimension); err != nil {
		return err
	}

	newState := cloneMemState(st)
	if newState.dimension == 0 {
		newState.dimension = len(rec.Vector)
	}
	rowID := applyInsert(newState, rec)

	newState.meta.Add(rowID, newState.rows[rowID].rec.Metadata)
	m.state.Store(newState)
	return nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.state.Load()
	rowID, exists := st.byID[rec.ID]
	if !exists {
		return &ErrNotFound{ID: rec.ID}
	}
	if err := validate(rec, st.dimension); err != nil {
		return err
	}

	newState := cloneMemState(st)
	oldMeta := newState.rows[rowID].rec.Metadata

	// Copy-on-write: replace the row pointer so readers holding the previous
	// state never observe the new components.
	newState.rows[rowID] = &row{
		rec: Record{
			ID:       rec.ID,
			Vector:   slices.Clone(rec.Vector),
			Metadata: metadata.CloneIfNeeded(rec.Metadata),
		},
		id: rowID,
	}

	newState.meta.Update(rowID, oldMeta, newState.rows[rowID].rec.Metadata)
	m.state.Store(newState)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.state.Load()
	rowID, exists := st.byID[id]
	if !exists {
		return &ErrNotFound{ID: id}
	}

	newState := cloneMemState(st)
	oldMeta := newState.rows[rowID].rec.Metadata
	newState.rows[rowID] = nil
	newState.free = append(newState.free, rowID)
	delete(newState.byID, id)
	newState.live--

	newState.meta.Remove(rowID, oldMeta)
	m.state.Store(newState)
	return nil
}

// Get implements Store. The returned record is a copy; callers may mutate it.
func (m *Memory) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	st := m.state.Load()
	rowID, exists := st.byID[id]
	if !exists {
		return Record{}, &ErrNotFound{ID: id}
	}
	rec := st.rows[rowID].rec
	return Record{
		ID:       rec.ID,
		Vector:   slices.Clone(rec.Vector),
		Metadata: rec.Metadata.Clone(),
	}, nil
}

// BulkLoad implements Store. Validation runs against a private clone, so a
// failing record leaves the published state untouched.
func (m *Memory) BulkLoad(ctx context.Context, recs []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.state.Load()
	newState := cloneMemState(st)

	metaRows := make([]uint32, 0, len(recs))
	for i, rec := range recs {
		if _, exists := newState.byID[rec.ID]; exists {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, &ErrDuplicateID{ID: rec.ID})
		}
		if err := validate(rec, newState.dimension); err != nil {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, err)
		}
		if newState.dimension == 0 {
			newState.dimension = len(rec.Vector)
		}
		metaRows = append(metaRows, applyInsert(newState, rec))
	}

	// All records validated and applied to the clone; commit.
	for _, rowID := range metaRows {
		newState.meta.Add(rowID, newState.rows[rowID].rec.Metadata)
	}
	m.state.Store(newState)
	return nil
}

// Snapshot returns an immutable view of the collection for scanning.
// The snapshot is stable: subsequent mutations do not affect it.
func (m *Memory) Snapshot() *Snapshot {
	return &Snapshot{st: m.state.Load()}
}

// Snapshot is an immutable point-in-time view of a Memory store.
type Snapshot struct {
	st *memState
}

// Len returns the number of live records in the snapshot.
func (sn *Snapshot) Len() int { return sn.st.live }

// Dimension returns the collection dimension at snapshot time.
func (sn *Snapshot) Dimension() int { return sn.st.dimension }

// MetaIndex returns the inverted metadata index as of snapshot time. Its
// postings agree exactly with the rows visible through this snapshot, even
// when later mutations reuse row identifiers.
func (sn *Snapshot) MetaIndex() *metadata.InvertedIndex { return sn.st.meta }

// Rows returns the dense row count including tombstones. Row identifiers are
// in [0, Rows()); RowAt reports whether a given row is live.
func (sn *Snapshot) Rows() int { return len(sn.st.rows) }

// RowAt returns the record at the given row, if the row is live.
// The returned record shares memory with the snapshot; treat it as read-only.
func (sn *Snapshot) RowAt(rowID uint32) (Record, bool) {
	if int(rowID) >= len(sn.st.rows) || sn.st.rows[rowID] == nil {
		return Record{}, false
	}
	return sn.st.rows[rowID].rec, true
}

// Get returns the record for the given id, if present.
// The returned record shares memory with the snapshot; treat it as read-only.
func (sn *Snapshot) Get(id string) (Record, bool) {
	rowID, exists := sn.st.byID[id]
	if !exists {
		return Record{}, false
	}
	return sn.st.rows[rowID].rec, true
}

// All returns an iterator over all live records with their row identifiers.
// Records share memory with the snapshot; treat them as read-only.
func (sn *Snapshot) All() iter.Seq2[uint32, Record] {
	return func(yield func(uint32, Record) bool) {
		for _, r := range sn.st.rows {
			if r == nil {
				continue
			}
			if !yield(r.id, r.rec) {
				return
			}
		}
	}
}
