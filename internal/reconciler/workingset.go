package reconciler

import "gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"

// workingSet is the cycle-local copy of the provider's records. Successful
// removals are pruned from it; additions are not recorded.
type workingSet struct {
	records []dreamhost.Record
}

func newWorkingSet(live []dreamhost.Record) *workingSet {
	records := make([]dreamhost.Record, len(live))
	copy(records, live)
	return &workingSet{records: records}
}

// match returns the index of the first record with the given
// fully-qualified name and type, or -1. Comparison is exact.
func (w *workingSet) match(name, recordType string) int {
	for i, rec := range w.records {
		if rec.Record == name && rec.Type == recordType {
			return i
		}
	}
	return -1
}

func (w *workingSet) remove(idx int) {
	w.records = append(w.records[:idx], w.records[idx+1:]...)
}
