package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/srxmerge/pkg/configstore"
)

// storeCollector reads the config store on each scrape.
type storeCollector struct {
	store *configstore.Store

	activePolicies *prometheus.Desc
	activeWarnings *prometheus.Desc
	historyEntries *prometheus.Desc
	configMode     *prometheus.Desc
	candidateDirty *prometheus.Desc
}

func newCollector(store *configstore.Store) *storeCollector {
	return &storeCollector{
		store: store,
		activePolicies: prometheus.NewDesc(
			"srxmerge_active_policies",
			"Policies in the active configuration, by zone pair.",
			[]string{"from_zone", "to_zone"}, nil,
		),
		activeWarnings: prometheus.NewDesc(
			"srxmerge_active_warnings",
			"Warnings reported for the active configuration.",
			nil, nil,
		),
		historyEntries: prometheus.NewDesc(
			"srxmerge_history_entries",
			"Rollback slots held in memory.",
			nil, nil,
		),
		configMode: prometheus.NewDesc(
			"srxmerge_config_mode",
			"1 while an edit session is open.",
			nil, nil,
		),
		candidateDirty: prometheus.NewDesc(
			"srxmerge_candidate_dirty",
			"1 when the candidate has uncommitted changes.",
			nil, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activePolicies
	ch <- c.activeWarnings
	ch <- c.historyEntries
	ch <- c.configMode
	ch <- c.candidateDirty
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	if res := c.store.ActiveConfig(); res != nil {
		type pair struct{ from, to string }
		counts := make(map[pair]int)
		var order []pair
		for _, p := range res.Policies {
			k := pair{p.From, p.To}
			if _, ok := counts[k]; !ok {
				order = append(order, k)
			}
			counts[k]++
		}
		for _, k := range order {
			ch <- prometheus.MustNewConstMetric(c.activePolicies, prometheus.GaugeValue,
				float64(counts[k]), k.from, k.to)
		}
		ch <- prometheus.MustNewConstMetric(c.activeWarnings, prometheus.GaugeValue,
			float64(len(res.Diagnostics.Warnings())))
	}
	ch <- prometheus.MustNewConstMetric(c.historyEntries, prometheus.GaugeValue,
		float64(len(c.store.ListHistory())))
	ch <- prometheus.MustNewConstMetric(c.configMode, prometheus.GaugeValue, boolFloat(c.store.InConfigMode()))
	ch <- prometheus.MustNewConstMetric(c.candidateDirty, prometheus.GaugeValue, boolFloat(c.store.IsDirty()))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
