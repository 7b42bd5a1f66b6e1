package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const chainModel = `
name: chain
variables:
  - name: A
    domain: ["0", "1"]
  - name: B
    domain: ["0", "1"]
  - name: C
    domain: ["0", "1"]
factors:
  - name: F1
    variables: [A, B]
    rows:
      - {values: ["0", "0"], p: 1}
      - {values: ["0", "1"], p: 0.2}
      - {values: ["1", "0"], p: 0.2}
      - {values: ["1", "1"], p: 1}
  - name: F2
    variables: [B, C]
    rows:
      - {values: ["0", "0"], p: 1}
      - {values: ["0", "1"], p: 0.2}
      - {values: ["1", "0"], p: 0.2}
      - {values: ["1", "1"], p: 1}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI executes the root command in-process and captures its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag variables keep their values across Execute calls; restore the
	// registered defaults so runs stay independent.
	queryFlags.evidence = nil
	queryFlags.method = "propagation"
	queryFlags.order = ""
	queryFlags.jsonOut = false
	queryFlags.trace = false
	queryFlags.noHistory = false
	historyFlags.limit = 20
	historyFlags.model = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestQueryCommand(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)

	out, err := runCLI(t, "query", "-m", modelPath, "-q", "C", "-e", "A=0", "--no-history")
	if err != nil {
		t.Fatalf("query: %v\n%s", err, out)
	}
	if !strings.Contains(out, "P(C | A=0)") {
		t.Errorf("missing header in output:\n%s", out)
	}
	if !strings.Contains(out, "0.722222") || !strings.Contains(out, "0.277778") {
		t.Errorf("unexpected distribution:\n%s", out)
	}
}

func TestQueryCommand_JSON(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)

	out, err := runCLI(t, "query", "-m", modelPath, "-q", "C", "-e", "A=0", "--json", "--no-history")
	if err != nil {
		t.Fatalf("query --json: %v\n%s", err, out)
	}
	var dist map[string]float64
	if err := json.Unmarshal([]byte(out), &dist); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if math.Abs(dist["0"]-1.04/1.44) > 1e-9 {
		t.Errorf("P(C=0) = %v", dist["0"])
	}
}

func TestQueryCommand_Elimination(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)

	out, err := runCLI(t, "query", "-m", modelPath, "-q", "C", "-e", "A=0",
		"--method", "elimination", "--order", "B", "--no-history")
	if err != nil {
		t.Fatalf("query elimination: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0.722222") {
		t.Errorf("elimination result differs:\n%s", out)
	}
}

func TestQueryCommand_Errors(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)

	if out, err := runCLI(t, "query", "-m", modelPath, "-q", "Nope", "--no-history"); err == nil {
		t.Errorf("unknown query variable should fail:\n%s", out)
	}
	if out, err := runCLI(t, "query", "-m", modelPath, "-q", "C", "-e", "A0", "--no-history"); err == nil {
		t.Errorf("malformed evidence should fail:\n%s", out)
	}
	if out, err := runCLI(t, "query", "-m", modelPath, "-q", "C", "--method", "gibbs", "--no-history"); err == nil {
		t.Errorf("unknown method should fail:\n%s", out)
	}
}

func TestBatchAndHistoryCommands(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)
	queriesPath := writeTemp(t, "queries.yaml", `
queries:
  - query: C
    evidence:
      A: "0"
  - query: B
  - query: A
    evidence:
      C: "1"
`)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := runCLI(t, "batch", "-m", modelPath, "-f", queriesPath,
		"--parallel", "2", "--db", dbPath)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	for _, want := range []string{"P(C | A=0)", "P(B)", "P(A | C=1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("batch output missing %q:\n%s", want, out)
		}
	}

	hist, err := runCLI(t, "history", "--db", dbPath, "--limit", "0")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, hist)
	}
	lines := strings.Split(strings.TrimRight(hist, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("history lines = %d, want header + 3 runs:\n%s", len(lines), hist)
	}

	filtered, err := runCLI(t, "history", "--db", dbPath, "--limit", "0", "--model", "no-such.yaml")
	if err != nil {
		t.Fatalf("history --model: %v\n%s", err, filtered)
	}
	if lines := strings.Split(strings.TrimRight(filtered, "\n"), "\n"); len(lines) != 1 {
		t.Errorf("filtered history should show header only:\n%s", filtered)
	}
}

func TestValidateCommand(t *testing.T) {
	modelPath := writeTemp(t, "chain.yaml", chainModel)

	out, err := runCLI(t, "validate", "-m", modelPath)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 variables, 2 factors (tree)") {
		t.Errorf("validate summary missing:\n%s", out)
	}
	if !strings.Contains(out, "B: 2 values, 2 factors") {
		t.Errorf("validate variable lines missing:\n%s", out)
	}
}

func TestParseEvidence(t *testing.T) {
	bindings, err := parseEvidence([]string{"A=0", "B=yes"})
	if err != nil {
		t.Fatalf("parseEvidence: %v", err)
	}
	if bindings["A"] != "0" || bindings["B"] != "yes" {
		t.Errorf("bindings = %v", bindings)
	}
	if _, err := parseEvidence([]string{"A=0", "A=1"}); err == nil {
		t.Error("duplicate binding should fail")
	}
	if _, err := parseEvidence([]string{"=0"}); err == nil {
		t.Error("empty variable name should fail")
	}
}
