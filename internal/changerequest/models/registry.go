package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"crboard/internal/changerequest/system"
)

// Summary holds the running counters of a bucket.
type Summary struct {
	TotalCRs int `json:"totalCRs"`
}

// SystemBucket is the set of CRs attached to one canonical system key, in
// insertion order. Summary.TotalCRs always equals len(CRs).
type SystemBucket struct {
	Summary Summary         `json:"summary"`
	CRs     []ChangeRequest `json:"crs"`
}

// Registry is the whole document: canonical system key -> bucket. Buckets are
// created the first time a CR is added for their key.
//
// A crId -> bucket index is kept alongside the document so lookups by id do
// not scan every bucket. The index is not persisted; it is rebuilt from the
// buckets after decoding and maintained by Add/Replace/Remove.
type Registry struct {
	Systems map[system.Key]*SystemBucket `json:"systems"`

	index map[string]system.Key
	// dupes is set when the decoded document already held a crId more than once.
	dupes bool
}

// NewRegistry returns an empty document.
func NewRegistry() *Registry {
	return &Registry{Systems: make(map[system.Key]*SystemBucket)}
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	type document Registry
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Systems == nil {
		doc.Systems = make(map[system.Key]*SystemBucket)
	}
	for key, bucket := range doc.Systems {
		if bucket == nil {
			doc.Systems[key] = &SystemBucket{CRs: []ChangeRequest{}}
			continue
		}
		if bucket.CRs == nil {
			bucket.CRs = []ChangeRequest{}
		}
	}
	*r = Registry(doc)
	r.index = nil
	return nil
}

// Keys returns bucket keys in sorted order. Scans that must pick a "first"
// match use this order so results are deterministic.
func (r *Registry) Keys() []system.Key {
	keys := make([]system.Key, 0, len(r.Systems))
	for k := range r.Systems {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Bucket returns the bucket for key, if any.
func (r *Registry) Bucket(key system.Key) (*SystemBucket, bool) {
	b, ok := r.Systems[key]
	return b, ok
}

func (r *Registry) ensureIndex() {
	if r.index != nil {
		return
	}
	r.index = make(map[string]system.Key)
	r.dupes = false
	for _, key := range r.Keys() {
		for _, cr := range r.Systems[key].CRs {
			if _, seen := r.index[cr.CRID]; seen {
				r.dupes = true
				continue
			}
			r.index[cr.CRID] = key
		}
	}
}

// Contains reports whether any bucket holds crID.
func (r *Registry) Contains(crID string) bool {
	r.ensureIndex()
	_, ok := r.index[crID]
	return ok
}

// Find locates crID. With duplicate ids (only possible in documents written
// before uniqueness was enforced) the first match in Keys() order wins.
func (r *Registry) Find(crID string) (system.Key, ChangeRequest, bool) {
	r.ensureIndex()
	key, ok := r.index[crID]
	if !ok {
		return "", ChangeRequest{}, false
	}
	i := r.Systems[key].position(crID)
	if i < 0 {
		return "", ChangeRequest{}, false
	}
	return key, r.Systems[key].CRs[i], true
}

// Add appends cr to the bucket for key, creating the bucket when absent.
// Callers check uniqueness with Contains first.
func (r *Registry) Add(key system.Key, cr ChangeRequest) {
	r.ensureIndex()
	b, ok := r.Systems[key]
	if !ok {
		b = &SystemBucket{CRs: []ChangeRequest{}}
		r.Systems[key] = b
	}
	b.CRs = append(b.CRs, cr)
	b.Summary.TotalCRs++
	if _, exists := r.index[cr.CRID]; !exists {
		r.index[cr.CRID] = key
	}
}

// Replace overwrites the stored CR with id crID in place. The CR keeps its
// bucket even when its Application changed.
func (r *Registry) Replace(crID string, cr ChangeRequest) bool {
	r.ensureIndex()
	key, ok := r.index[crID]
	if !ok {
		return false
	}
	b := r.Systems[key]
	i := b.position(crID)
	if i < 0 {
		return false
	}
	b.CRs[i] = cr
	if cr.CRID != crID {
		delete(r.index, crID)
		r.index[cr.CRID] = key
	}
	return true
}

// Remove deletes the CR with id crID from its bucket and decrements the bucket
// total. The bucket itself is kept, even when it becomes empty.
func (r *Registry) Remove(crID string) (system.Key, ChangeRequest, bool) {
	r.ensureIndex()
	key, ok := r.index[crID]
	if !ok {
		return "", ChangeRequest{}, false
	}
	b := r.Systems[key]
	i := b.position(crID)
	if i < 0 {
		return "", ChangeRequest{}, false
	}
	removed := b.CRs[i]
	b.CRs = append(b.CRs[:i], b.CRs[i+1:]...)
	b.Summary.TotalCRs--
	delete(r.index, crID)
	if r.dupes {
		// another copy of the id may live in a later bucket
		r.index = nil
	}
	return key, removed, true
}

// All returns every CR, buckets in Keys() order, CRs in insertion order.
func (r *Registry) All() []ChangeRequest {
	out := make([]ChangeRequest, 0, r.Len())
	for _, key := range r.Keys() {
		out = append(out, r.Systems[key].CRs...)
	}
	return out
}

// Len is the number of stored CRs.
func (r *Registry) Len() int {
	n := 0
	for _, b := range r.Systems {
		n += len(b.CRs)
	}
	return n
}

// Clone returns a deep copy that shares nothing with r.
func (r *Registry) Clone() *Registry {
	out := &Registry{Systems: make(map[system.Key]*SystemBucket, len(r.Systems))}
	for key, b := range r.Systems {
		crs := make([]ChangeRequest, len(b.CRs))
		copy(crs, b.CRs)
		out.Systems[key] = &SystemBucket{Summary: b.Summary, CRs: crs}
	}
	return out
}

// CheckInvariants verifies Summary.TotalCRs == len(CRs) for every bucket.
func (r *Registry) CheckInvariants() error {
	for _, key := range r.Keys() {
		b := r.Systems[key]
		if b.Summary.TotalCRs != len(b.CRs) {
			return fmt.Errorf("bucket %s: totalCRs=%d but holds %d CRs", key, b.Summary.TotalCRs, len(b.CRs))
		}
	}
	return nil
}

func (b *SystemBucket) position(crID string) int {
	for i := range b.CRs {
		if b.CRs[i].CRID == crID {
			return i
		}
	}
	return -1
}
