package metrics

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// sample returns the metric in family name whose labels include every
// name=value pair in labels.
func sample(g prometheus.Gatherer, name string, labels ...string) (*dto.Metric, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(families, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, m := range families[i].GetMetric() {
		if hasLabels(m, labels) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, labels)
}

func hasLabels(m *dto.Metric, want []string) bool {
	have := map[string]string{}
	for _, lp := range m.GetLabel() {
		have[lp.GetName()] = lp.GetValue()
	}
	for i := 0; i+1 < len(want); i += 2 {
		if have[want[i]] != want[i+1] {
			return false
		}
	}
	return true
}

func counterValue(g prometheus.Gatherer, name string, labels ...string) (float64, error) {
	m, err := sample(g, name, labels...)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}
