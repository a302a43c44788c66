// Package monitor is the orchestration core: it schedules one watcher per
// active class, turns page snapshots into discrete question events, routes
// oracle answers through the confidence policy, and mediates human overrides
// for low-confidence answers.
package monitor

// Detector turns a stream of content fingerprints into edge-triggered change
// events. It belongs to a single watcher goroutine and needs no locking.
type Detector struct {
	lastFingerprint string
	lastLocation    string
}

// Prime seeds the detector with the first observed state so the initial
// page load does not count as a change.
func (d *Detector) Prime(fingerprint, location string) {
	d.lastFingerprint = fingerprint
	d.lastLocation = location
}

// Observe reports whether content changed since the last good observation.
// An empty fingerprint is a transient read failure: it never triggers and
// never replaces the stored value, so a later real change is still detected
// against the prior good fingerprint.
func (d *Detector) Observe(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	if fingerprint == d.lastFingerprint {
		return false
	}
	d.lastFingerprint = fingerprint
	return true
}

// ObserveLocation reports whether the page navigated. Navigation always
// counts as a content change; the caller must also drop its question dedup
// state, which the old address no longer vouches for.
func (d *Detector) ObserveLocation(location string) bool {
	if location == "" || location == d.lastLocation {
		return false
	}
	d.lastLocation = location
	return true
}
