package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedIndex accelerates metadata filtering for common equality/in queries.
//
// Postings are Roaring Bitmaps keyed by field and value key, holding the
// dense row identifiers assigned by the store. Supported operators:
//
//   - OpEqual
//   - OpIn (array of Values)
//
// Other operators fall back to scanning + evaluating metadata.FilterSet.
type InvertedIndex struct {
	mu sync.RWMutex

	// key -> valueKey -> postings
	fields map[string]map[string]*roaring.Bitmap
}

// NewInvertedIndex creates a new empty inverted index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{fields: make(map[string]map[string]*roaring.Bitmap)}
}

// Clone returns a deep copy of the index. A store can mutate the copy
// privately and publish it atomically with its record state.
func (ix *InvertedIndex) Clone() *InvertedIndex {
	if ix == nil {
		return NewInvertedIndex()
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := NewInvertedIndex()
	for k, vm := range ix.fields {
		nm := make(map[string]*roaring.Bitmap, len(vm))
		for vk, rb := range vm {
			nm[vk] = rb.Clone()
		}
		out.fields[k] = nm
	}
	return out
}

// Add indexes the document under the given row.
func (ix *InvertedIndex) Add(row uint32, doc Document) {
	if ix == nil || doc == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addLocked(row, doc)
}

// Remove drops the document's postings for the given row.
func (ix *InvertedIndex) Remove(row uint32, doc Document) {
	if ix == nil || doc == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(row, doc)
}

// Update replaces the postings for the given row.
func (ix *InvertedIndex) Update(row uint32, oldDoc, newDoc Document) {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if oldDoc != nil {
		ix.removeLocked(row, oldDoc)
	}
	if newDoc != nil {
		ix.addLocked(row, newDoc)
	}
}

func (ix *InvertedIndex) addLocked(row uint32, doc Document) {
	for k, v := range doc {
		vm, ok := ix.fields[k]
		if !ok {
			vm = make(map[string]*roaring.Bitmap)
			ix.fields[k] = vm
		}
		vk := v.Key()
		rb, ok := vm[vk]
		if !ok {
			rb = roaring.New()
			vm[vk] = rb
		}
		rb.Add(row)
	}
}

func (ix *InvertedIndex) removeLocked(row uint32, doc Document) {
	for k, v := range doc {
		vm, ok := ix.fields[k]
		if !ok {
			continue
		}
		vk := v.Key()
		rb, ok := vm[vk]
		if !ok {
			continue
		}
		rb.Remove(row)
		if rb.IsEmpty() {
			delete(vm, vk)
		}
		if len(vm) == 0 {
			delete(ix.fields, k)
		}
	}
}

// Compile attempts to compile a FilterSet into a fast membership test using
// the inverted index. If compilation is not possible (an operator the index
// cannot serve), ok=false and the caller must fall back to document matching.
func (ix *InvertedIndex) Compile(fs *FilterSet) (fn func(row uint32) bool, ok bool) {
	if ix == nil || fs == nil || len(fs.Filters) == 0 {
		return nil, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var acc *roaring.Bitmap

	for _, f := range fs.Filters {
		var postings *roaring.Bitmap

		switch f.Operator {
		case OpEqual:
			postings = ix.postingsLocked(f.Key, f.Value)

		case OpIn:
			arr, isArr := f.Value.AsArray()
			if !isArr {
				return nil, false
			}
			postings = roaring.New()
			for _, item := range arr {
				if p := ix.postingsLocked(f.Key, item); p != nil {
					postings.Or(p)
				}
			}

		default:
			return nil, false
		}

		if postings == nil || postings.IsEmpty() {
			// Key/value doesn't exist; fast path to always-false.
			return func(uint32) bool { return false }, true
		}

		if acc == nil {
			acc = postings.Clone()
		} else {
			acc.And(postings)
		}
	}

	if acc == nil {
		return nil, false
	}
	result := acc
	return func(row uint32) bool { return result.Contains(row) }, true
}

func (ix *InvertedIndex) postingsLocked(key string, v Value) *roaring.Bitmap {
	vm, ok := ix.fields[key]
	if !ok {
		return nil
	}
	return vm[v.Key()]
}
