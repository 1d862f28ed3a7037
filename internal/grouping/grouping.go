// grouping.go — Session grouping for display.
// Pure, stateless clustering of redirect records into logical browsing
// sessions: bucket by tab, cluster by time window, partition by domain
// affinity, pick a representative primary per cluster. Computed fresh on
// every query; groups hold no identity across recomputation.
package grouping

import (
	"sort"

	"github.com/hoptrace/hoptrace/internal/noise"
	"github.com/hoptrace/hoptrace/internal/types"
)

// SessionWindowMs is the maximum gap between consecutive chain initiations
// for them to still count as one session.
const SessionWindowMs = 60_000

// SessionGroup is a cluster of records believed to belong to one browsing
// session: the most representative record plus its related satellites.
type SessionGroup struct {
	TabID      int                    `json:"tab_id"`
	Primary    types.RedirectRecord   `json:"primary"`
	Satellites []types.RedirectRecord `json:"satellites,omitempty"`
}

// Group clusters records into session groups. Pending records and records
// without real tab context (tab 0 or -1) are always singleton groups.
// When showingNoise is false, groups led by a noise-classified record are
// dropped and noise records are filtered out of satellite lists.
func Group(records []types.RedirectRecord, showingNoise bool) []SessionGroup {
	var pendingGroups []SessionGroup
	var groups []SessionGroup
	byTab := make(map[int][]types.RedirectRecord)

	for _, rec := range records {
		switch {
		case rec.Pending:
			pendingGroups = append(pendingGroups, SessionGroup{TabID: rec.TabID, Primary: rec})
		case rec.TabID == 0 || rec.TabID == -1:
			groups = append(groups, SessionGroup{TabID: rec.TabID, Primary: rec})
		default:
			byTab[rec.TabID] = append(byTab[rec.TabID], rec)
		}
	}

	for tabID, recs := range byTab {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].InitiatedAtMs < recs[j].InitiatedAtMs
		})
		for _, cluster := range splitByTimeWindow(recs) {
			groups = append(groups, partitionByAffinity(tabID, cluster)...)
		}
	}

	if !showingNoise {
		groups = filterNoise(groups)
	}

	// Pending first, most recent first; completed by primary initiation desc.
	sort.SliceStable(pendingGroups, func(i, j int) bool {
		return pendingGroups[i].Primary.InitiatedAtMs > pendingGroups[j].Primary.InitiatedAtMs
	})
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Primary.InitiatedAtMs > groups[j].Primary.InitiatedAtMs
	})
	return append(pendingGroups, groups...)
}

// splitByTimeWindow cuts a time-sorted record list wherever the gap between
// consecutive initiations exceeds the session window.
func splitByTimeWindow(recs []types.RedirectRecord) [][]types.RedirectRecord {
	if len(recs) == 0 {
		return nil
	}
	var clusters [][]types.RedirectRecord
	start := 0
	for i := 1; i < len(recs); i++ {
		if recs[i].InitiatedAtMs-recs[i-1].InitiatedAtMs > SessionWindowMs {
			clusters = append(clusters, recs[start:i])
			start = i
		}
	}
	return append(clusters, recs[start:])
}

// partitionByAffinity recursively splits a time-cluster by domain affinity.
// The primary's host set decides membership: records sharing at least one
// host become satellites, the rest form further groups. This keeps a CDN
// telemetry ping from being visually merged with an unrelated page load that
// merely landed in the same tab and window.
func partitionByAffinity(tabID int, recs []types.RedirectRecord) []SessionGroup {
	if len(recs) == 0 {
		return nil
	}
	primary := pickPrimary(recs)
	hosts := recordHosts(primary)

	var satellites, rest []types.RedirectRecord
	for _, rec := range recs {
		if rec.ID == primary.ID {
			continue
		}
		if sharesHost(hosts, rec) {
			satellites = append(satellites, rec)
		} else {
			rest = append(rest, rec)
		}
	}

	group := SessionGroup{TabID: tabID, Primary: primary, Satellites: satellites}
	return append([]SessionGroup{group}, partitionByAffinity(tabID, rest)...)
}

// pickPrimary selects the most representative record. Tie-break order:
// non-noise before noise, more hops before fewer, earliest initiation.
func pickPrimary(recs []types.RedirectRecord) types.RedirectRecord {
	best := recs[0]
	for _, rec := range recs[1:] {
		if primaryLess(rec, best) {
			best = rec
		}
	}
	return best
}

// primaryLess reports whether a is a better primary than b.
func primaryLess(a, b types.RedirectRecord) bool {
	an, bn := isNoiseRecord(a), isNoiseRecord(b)
	if an != bn {
		return !an
	}
	if a.HopCount() != b.HopCount() {
		return a.HopCount() > b.HopCount()
	}
	return a.InitiatedAtMs < b.InitiatedAtMs
}

// isNoiseRecord reports whether the record is noise-classified for display
// purposes.
func isNoiseRecord(rec types.RedirectRecord) bool {
	return rec.Classification == types.ClassificationTracking
}

// recordHosts collects every host appearing anywhere in the record's URLs,
// events, and initiator.
func recordHosts(rec types.RedirectRecord) map[string]struct{} {
	hosts := make(map[string]struct{})
	add := func(raw string) {
		if h := noise.Host(raw); h != "" {
			hosts[h] = struct{}{}
		}
	}
	add(rec.InitialURL)
	add(rec.FinalURL)
	add(rec.Initiator)
	for _, ev := range rec.Events {
		add(ev.From)
		add(ev.To)
	}
	for _, ev := range rec.NoiseEvents {
		add(ev.From)
		add(ev.To)
	}
	return hosts
}

// sharesHost reports whether the record references any of the given hosts.
func sharesHost(hosts map[string]struct{}, rec types.RedirectRecord) bool {
	for h := range recordHosts(rec) {
		if _, ok := hosts[h]; ok {
			return true
		}
	}
	return false
}

// filterNoise drops groups led by a noise record and strips noise records
// from satellite lists.
func filterNoise(groups []SessionGroup) []SessionGroup {
	kept := groups[:0]
	for _, g := range groups {
		if isNoiseRecord(g.Primary) {
			continue
		}
		var sats []types.RedirectRecord
		for _, s := range g.Satellites {
			if !isNoiseRecord(s) {
				sats = append(sats, s)
			}
		}
		g.Satellites = sats
		kept = append(kept, g)
	}
	return kept
}
