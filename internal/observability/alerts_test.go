package observability

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`dyetrack_[a-z_]+`)

func loadAlerts(t *testing.T) alertFile {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "dyetrack.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "dyetrack", file.Groups[0].Name)
	return file
}

// exportedFamilies lists the metric family names NewMetrics exposes once
// every vector has a sample.
func exportedFamilies(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.ObserveAPICall("/batches", http.MethodGet, http.StatusOK, time.Millisecond)
	m.requestsTotal.WithLabelValues("/", "200").Inc()
	m.requestDuration.WithLabelValues("/").Observe(0.01)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestAlertRulesAreDocumented(t *testing.T) {
	want := map[string]string{
		"HighErrorRate":       "critical",
		"BatchAPIUnavailable": "critical",
		"HighLatency":         "warning",
	}
	rules := loadAlerts(t).Groups[0].Rules
	require.Len(t, rules, len(want))

	for _, rule := range rules {
		severity, ok := want[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.True(t, strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook.md#"), rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
	}
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	exported := exportedFamilies(t)
	for _, rule := range loadAlerts(t).Groups[0].Rules {
		used := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, used, rule.Alert)
		for _, name := range used {
			family := strings.TrimSuffix(name, "_bucket")
			assert.True(t, exported[family], "%s uses unknown metric %s", rule.Alert, name)
		}
	}
}

func TestRunbookHasAnchorPerAlert(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)
	runbook := strings.ToLower(string(data))
	for _, rule := range loadAlerts(t).Groups[0].Rules {
		anchor := strings.TrimPrefix(rule.Annotations["runbook"], "docs/runbook.md#")
		heading := "## " + strings.ReplaceAll(anchor, "-", " ")
		assert.Contains(t, runbook, heading, rule.Alert)
	}
}
