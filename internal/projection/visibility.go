package projection

import (
	"context"
	"sync"
)

// BlobProber checks existence of externally stored binaries.
type BlobProber interface {
	BlobExists(ctx context.Context, ref string) (bool, error)
}

// ParentSet answers whether a parent entity is alive.
type ParentSet interface {
	Alive(id string) bool
}

// BlobMemo memoizes blob probes for the duration of one view computation, so
// each unique reference costs at most one round-trip.
//
// Thread-safety: BlobMemo is safe for concurrent use. Callers asking for a
// ref whose probe is in flight wait for that probe instead of issuing another.
type BlobMemo struct {
	prober BlobProber

	mu     sync.Mutex
	seen   map[string]*blobProbe
	probes int
}

// blobProbe is one probe result; done is closed once ok and err are set.
type blobProbe struct {
	done chan struct{}
	ok   bool
	err  error
}

// NewBlobMemo wraps prober. A nil prober treats every blob as present.
func NewBlobMemo(prober BlobProber) *BlobMemo {
	return &BlobMemo{prober: prober, seen: make(map[string]*blobProbe)}
}

// Exists returns the memoized probe result for ref. Failed probes are not
// memoized; the next call for ref probes again.
func (m *BlobMemo) Exists(ctx context.Context, ref string) (bool, error) {
	if m == nil || m.prober == nil {
		return true, nil
	}

	m.mu.Lock()
	if p, hit := m.seen[ref]; hit {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.ok, p.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	p := &blobProbe{done: make(chan struct{})}
	m.seen[ref] = p
	m.probes++
	m.mu.Unlock()

	p.ok, p.err = m.prober.BlobExists(ctx, ref)
	if p.err != nil {
		p.ok = false
		p.err = &Error{
			Code:    ErrCodeProbeFailed,
			Message: "blob existence probe failed",
			Details: map[string]string{"ref": ref},
			Err:     p.err,
		}
		m.mu.Lock()
		delete(m.seen, ref)
		m.mu.Unlock()
	}
	close(p.done)
	return p.ok, p.err
}

// Probes returns the number of probes that reached the prober.
func (m *BlobMemo) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Exclusion names why an entity was filtered out.
type Exclusion string

const (
	Visible        Exclusion = ""
	SelfDeleted    Exclusion = "self_deleted"
	CascadeDeleted Exclusion = "cascade_deleted"
	DanglingBlob   Exclusion = "dangling_blob"
)

// Visibility applies the three exclusion rules after tip selection.
type Visibility struct {
	Index   *Index
	Policy  Policy
	Parents ParentSet // nil when the domain has no parent
	Blobs   *BlobMemo // nil skips the blob rule
}

// Check returns Visible or the first rule that excludes e.
// Only probe failures are errors; a missing blob is an exclusion.
func (v Visibility) Check(ctx context.Context, e Entity) (Exclusion, error) {
	if v.Index.IsTombstoned(e.Tip.ID) {
		return SelfDeleted, nil
	}

	fields := e.Tip.Fields()

	if pf := v.Policy.Spec.ParentField; pf != "" && v.Parents != nil {
		if parent := fields.Str(pf); parent != "" && !v.Parents.Alive(parent) {
			return CascadeDeleted, nil
		}
	}

	if bf := v.Policy.Spec.BlobField; bf != "" && v.Blobs != nil {
		if ref := fields.Str(bf); ref != "" {
			ok, err := v.Blobs.Exists(ctx, ref)
			if err != nil {
				return Visible, err
			}
			if !ok {
				return DanglingBlob, nil
			}
		}
	}

	return Visible, nil
}
