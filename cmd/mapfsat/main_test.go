package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

const cornerInstance = `name: corner
width: 3
height: 3
horizon: 4
agents:
  - start: [0, 0]
    goal: [2, 2]
`

const wallInstance = `name: wall
width: 3
height: 1
horizon: 5
obstacles: [[1, 0]]
agents:
  - start: [0, 0]
    goal: [2, 0]
`

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the CLI and returns stdout and the exit code.
func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return out.String(), 0
	}
	var code exitError
	if errors.As(err, &code) {
		return out.String(), int(code)
	}
	t.Logf("mapfsat %v: %v", args, err)
	return out.String(), 1
}

func TestEncode(t *testing.T) {
	inst := writeFile(t, "corner.yaml", cornerInstance)
	wcnf := filepath.Join(t.TempDir(), "corner.wcnf")

	_, code := run(t, "encode", "-o", wcnf, inst)
	require.Equal(t, 0, code)

	data, err := os.ReadFile(wcnf)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c instance corner")
	assert.Contains(t, string(data), "p wcnf ")

	f, err := encoding.ReadWCNF(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, f.Soft, 1)
	assert.False(t, f.Unsatisfiable())

	stdout, code := run(t, "encode", "--horizon", "6", "--at-most-one", "pairwise", inst)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "horizon 6")
}

func TestEncodeNeedsHorizon(t *testing.T) {
	inst := writeFile(t, "auto.yaml", "width: 2\nheight: 1\nagents:\n  - {start: [0, 0], goal: [1, 0]}\n")
	_, code := run(t, "encode", inst)
	assert.Equal(t, 1, code)

	_, code = run(t, "encode", "--exactly-one", "binary", inst)
	assert.Equal(t, 1, code)
}

func TestSolve(t *testing.T) {
	inst := writeFile(t, "corner.yaml", cornerInstance)
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "metrics.prom")
	report := filepath.Join(dir, "report.json")

	for _, backend := range []string{"gophersat", "gini"} {
		stdout, code := run(t, "solve", "--backend", backend,
			"--metrics-file", metricsFile, "--report", report, inst)
		require.Equal(t, exitSatisfiable, code, backend)
		assert.Contains(t, stdout, "status: OPTIMAL")
		assert.Contains(t, stdout, "cost: 0")
		assert.Contains(t, stdout, "agent 0 (arrives 4): (0,0)")

		prom, err := os.ReadFile(metricsFile)
		require.NoError(t, err)
		assert.Contains(t, string(prom), `mapfsat_solve_total{backend="`+backend+`",status="OPTIMUM FOUND"} 1`)

		var rep struct {
			Success bool `json:"success"`
			Steps   []json.RawMessage
		}
		data, err := os.ReadFile(report)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &rep))
		assert.True(t, rep.Success)
		assert.Len(t, rep.Steps, 5)
	}
}

func TestSolveUnsatisfiable(t *testing.T) {
	inst := writeFile(t, "wall.yaml", wallInstance)
	stdout, code := run(t, "solve", inst)
	assert.Equal(t, exitUnsatisfiable, code)
	assert.Contains(t, stdout, "status: UNSATISFIABLE")

	stdout, code = run(t, "solve", "--auto", inst)
	assert.Equal(t, exitUnsatisfiable, code)
	assert.Contains(t, stdout, "status: UNSATISFIABLE")
}

func TestSolveAuto(t *testing.T) {
	inst := writeFile(t, "corner.yaml", cornerInstance)
	stdout, code := run(t, "solve", "--auto", "--horizon", "20", inst)
	require.Equal(t, exitSatisfiable, code)
	assert.Contains(t, stdout, "horizon: 4\n")
}

func TestCheck(t *testing.T) {
	inst := writeFile(t, "corner.yaml", cornerInstance)
	wcnf := filepath.Join(t.TempDir(), "corner.wcnf")
	_, code := run(t, "encode", "-o", wcnf, inst)
	require.Equal(t, 0, code)

	stdout, code := run(t, "check", wcnf)
	assert.Equal(t, exitSatisfiable, code)
	assert.Equal(t, "s OPTIMUM FOUND\no 0\n", stdout)

	stdout, code = run(t, "check", "--backend", "gini", wcnf, inst)
	assert.Equal(t, exitSatisfiable, code)
	assert.Contains(t, stdout, "agent 0 (arrives 4)")

	unsat := writeFile(t, "unsat.wcnf", "p cnf 1 2\n1 0\n-1 0\n")
	stdout, code = run(t, "check", unsat)
	assert.Equal(t, exitUnsatisfiable, code)
	assert.Equal(t, "s UNSATISFIABLE\n", stdout)
}
