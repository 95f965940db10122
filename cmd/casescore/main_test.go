package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/pipeline"
	"github.com/smartdispute/case-engine/internal/replay"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

const landlordJSON = `{"caseType": "landlord_tenant", "documents": [{"text": "My landlord issued an N4 notice for unpaid rent of $1800 and has not repaired the broken heater.", "weight": 1}]}`

// run executes the root command with a config file in a fresh directory and
// returns stdout.
func run(t *testing.T, cfgYAML, stdin string, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "casescore.yaml")
	if cfgYAML != "" {
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))
	}

	return runApp(t, &app{}, cfgPath, stdin, args...)
}

// clearEnv unsets every variable the config loader reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CASESCORE_TAXONOMY", "CASESCORE_TAXONOMY_DB", "GEMINI_API_KEY", "CASESCORE_ENRICH_ADDR", "CASESCORE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func runApp(t *testing.T, a *app, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := a.rootCmd()
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := execute(context.Background(), a, root)
	return out.String(), err
}

// syncCounter counts logger flushes.
type syncCounter struct {
	zapcore.Core
	syncs int
}

func (s *syncCounter) Sync() error {
	s.syncs++
	return nil
}

const quietLogs = "logging:\n  level: error\n"

func TestScoreFromStdin(t *testing.T) {
	out, err := run(t, quietLogs, landlordJSON, "score")
	require.NoError(t, err)

	var b pipeline.Bundle
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.NotNil(t, b.PrimaryCategory)
	assert.Equal(t, taxonomy.LandlordTenant, *b.PrimaryCategory)
	assert.Equal(t, pipeline.MethodRuleBased, b.AnalysisMethod)
	require.NotEmpty(t, b.Recommendations)
	assert.Equal(t, "landlord-tenant_eviction_defense", b.Recommendations[0].ID)
}

func TestScoreFromFileWithCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.json")
	require.NoError(t, os.WriteFile(path, []byte(landlordJSON), 0o644))

	out, err := run(t, quietLogs, "", "score", "--check", path)
	require.NoError(t, err)

	var got checkedBundle
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Eval.Passed)
	assert.Equal(t, "all checks passed", got.Eval.Reason)
	assert.Greater(t, got.Bundle.Merit.Score, 0.0)
}

func TestScoreExtractEntities(t *testing.T) {
	in := `{"caseType": "", "documents": [{"text": "Write to jane@example.org about the eviction.", "weight": 1}]}`
	out, err := run(t, quietLogs, in, "score", "--extract-entities")
	require.NoError(t, err)

	var b pipeline.Bundle
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	// Entities count toward entity completeness.
	assert.Greater(t, b.Merit.Components.EntityCompleteness, 0.0)
}

func TestScoreRejectsBadJSON(t *testing.T) {
	_, err := run(t, quietLogs, "{not json", "score")
	assert.ErrorContains(t, err, "decode evidence")
}

func TestBatch(t *testing.T) {
	in := strings.Join([]string{
		`{"id": "wrapped", "evidence": ` + landlordJSON + `}`,
		landlordJSON,
		``,
		`this is not json`,
	}, "\n")

	out, err := run(t, quietLogs, in, "batch")
	require.NoError(t, err)

	var results []pipeline.BatchResult
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r pipeline.BatchResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		results = append(results, r)
	}
	require.Len(t, results, 3)

	assert.Equal(t, "wrapped", results[0].ID)
	assert.NotEmpty(t, results[1].ID)
	assert.Equal(t, "line-4", results[2].ID)

	require.NotNil(t, results[0].Bundle)
	require.NotNil(t, results[1].Bundle)
	assert.Equal(t, results[0].Bundle.Merit, results[1].Bundle.Merit)

	require.NotNil(t, results[2].Bundle)
	assert.Nil(t, results[2].Bundle.PrimaryCategory)
	assert.Zero(t, results[2].Bundle.Merit.Score)
}

func TestExtract(t *testing.T) {
	out, err := run(t, quietLogs, "Call 416-555-0199 or email jane@example.org.", "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "jane@example.org")
}

func TestReplayFixture(t *testing.T) {
	out, err := run(t, quietLogs, "", "replay", "--fixture", "../../internal/replay/testdata/cases.json")
	require.NoError(t, err)
	assert.Contains(t, out, "landlord-n4")
	assert.Contains(t, out, "Summary: 4 total, 4 pass, 0 eval_fail, 0 mismatch")
}

func TestReplayRecordThenReplay(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.json")
	dst := filepath.Join(dir, "out.json")
	require.NoError(t, replay.SaveFixture(src, &replay.Fixture{
		Description: "unpinned",
		Cases: []replay.FixtureCase{{
			ID: "employment",
			Evidence: mustEvidence(t, `{"caseType": "employment", "documents": [{"text": "I was fired without notice and my employer owes unpaid wages.", "weight": 1}]}`),
			Expect: replay.FixtureExpectation{TopRecommendation: "no-such-remedy"},
		}},
	}))

	_, err := run(t, quietLogs, "", "replay", "--fixture", src)
	assert.Error(t, err)

	_, err = run(t, quietLogs, "", "replay", "--fixture", src, "--record", dst)
	require.NoError(t, err)

	out, err := run(t, quietLogs, "", "replay", "--fixture", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 1 total, 1 pass")
}

func TestReplayRequiresFixture(t *testing.T) {
	_, err := run(t, quietLogs, "", "replay")
	assert.Error(t, err)
}

func TestTaxonomySeedCheckDump(t *testing.T) {
	db := filepath.Join(t.TempDir(), "taxonomy.db")
	cfg := quietLogs + "taxonomy:\n  db_path: " + db + "\n"

	// An empty store is reported with a hint.
	_, err := run(t, cfg, landlordJSON, "score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taxonomy seed")

	out, err := run(t, cfg, "", "taxonomy", "seed")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = run(t, cfg, "", "taxonomy", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "categories:  8")
	assert.Contains(t, out, "revisions:   1")
	assert.Contains(t, out, "embedded defaults")

	out, err = run(t, cfg, "", "taxonomy", "dump")
	require.NoError(t, err)
	var f taxonomy.File
	require.NoError(t, yaml.Unmarshal([]byte(out), &f))
	assert.Len(t, f.Categories, 8)

	// The stored catalogue scores like the embedded one.
	stored, err := run(t, cfg, landlordJSON, "score")
	require.NoError(t, err)
	embedded, err := run(t, quietLogs, landlordJSON, "score")
	require.NoError(t, err)
	assert.JSONEq(t, embedded, stored)
}

func TestTaxonomyDBFlag(t *testing.T) {
	db := filepath.Join(t.TempDir(), "flag.db")

	_, err := run(t, quietLogs, "", "taxonomy", "seed")
	assert.ErrorContains(t, err, "no store given")

	_, err = run(t, quietLogs, "", "taxonomy", "seed", "--db", db)
	require.NoError(t, err)

	out, err := run(t, quietLogs, "", "taxonomy", "check", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "revisions:   1")
}

func TestLoggerSyncedOnFailure(t *testing.T) {
	clearEnv(t)
	core := &syncCounter{Core: zapcore.NewNopCore()}
	a := &app{logger: zap.New(core)}

	_, err := runApp(t, a, filepath.Join(t.TempDir(), "absent.yaml"), "{not json", "score")
	require.Error(t, err)
	assert.Equal(t, 1, core.syncs)
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "logging:\n  level: loud\n", landlordJSON, "score")
	assert.ErrorContains(t, err, "invalid config")
}

func mustEvidence(t *testing.T, s string) (ev evidence.CaseEvidence) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(s), &ev))
	return ev
}
