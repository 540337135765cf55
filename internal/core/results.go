package core

import "sync"

// ResultSet holds at most one Finding per FQDN. The first finding added for a
// name is kept and later ones are discarded. Safe for concurrent use.
type ResultSet struct {
	mu       sync.Mutex
	index    map[string]int
	findings []Finding
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[string]int)}
}

// Add inserts f unless its FQDN is already present. It reports whether f was kept.
func (r *ResultSet) Add(f Finding) bool {
	key := f.FQDN()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = len(r.findings)
	r.findings = append(r.findings, f)
	return true
}

// Get returns the finding stored for fqdn.
func (r *ResultSet) Get(fqdn string) (Finding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[fqdn]
	if !ok {
		return Finding{}, false
	}
	return r.findings[i], true
}

// Len returns the number of findings.
func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.findings)
}

// Findings returns a copy of the findings in insertion order.
func (r *ResultSet) Findings() []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Finding(nil), r.findings...)
}
