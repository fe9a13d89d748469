package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestSyncAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "sync.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rules alertSpec
	require.NoError(t, yaml.Unmarshal(data, &rules))
	require.NotEmpty(t, rules.Groups)

	var syncGroup *alertGroup
	for i := range rules.Groups {
		if rules.Groups[i].Name == "sync" {
			syncGroup = &rules.Groups[i]
			break
		}
	}
	require.NotNil(t, syncGroup, "sync alert group missing")

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"SyncItemErrorRate":       {severity: "critical", runbook: "docs/runbook-sync.md#item-error-rate"},
		"SyncBatchSlow":           {severity: "warning", runbook: "docs/runbook-sync.md#batch-slow"},
		"SyncAuditWriteFailures":  {severity: "warning", runbook: "docs/runbook-sync.md#audit-write-failures"},
		"SyncAsyncImportRejected": {severity: "warning", runbook: "docs/runbook-sync.md#async-import-rejected"},
	}
	require.Len(t, syncGroup.Rules, len(expected))

	for _, rule := range syncGroup.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}
