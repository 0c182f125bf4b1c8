package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mchmarny/belong/pkg/calc"
	"github.com/mchmarny/belong/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClasses = "ID\tClassification\nA\tx\nB\tx\nC\ty\nD\ty\n"
	testMatrix  = "ID\tA\tB\tC\tD\n" +
		"A\t0\t1\t5\t6\n" +
		"B\t1\t0\t4\t5\n" +
		"C\t5\t4\t0\t2\n" +
		"D\t6\t5\t2\t0\n"

	testProfileClasses = "ID\tClassification\nP1\tx\nP2\tx\nP3\ty\nP4\ty\n"
	testProfiles       = "FILE\tl1\tl2\tl3\n" +
		"P1\t1\t1\t1\n" +
		"P2\t1\t1\t2\n" +
		"P3\t2\t2\t2\n" +
		"P4\t2\t2\t3\n"

	fakeIndexTool = `#!/bin/sh
cat > /dev/null
case "$3" in
  -b) exit 0 ;;
  -q) printf 'FILE\tscore\nP1\t0\nP2\t1\nP3\t2\nP4\t3\n' ;;
  *) echo "unexpected args: $*" >&2; exit 2 ;;
esac
`
)

func writeTestFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), mode))
	return p
}

func runApp(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	all := append([]string{appName, "--home", home}, args...)
	err := app.Run(context.Background(), all)
	return buf.String(), err
}

type testSummary struct {
	Run struct {
		ID       string  `json:"id"`
		Mode     string  `json:"mode"`
		Entities int     `json:"entities"`
		Mean     float64 `json:"mean"`
	} `json:"run"`
	Classes []struct {
		Class string  `json:"class"`
		Count int     `json:"count"`
		Mean  float64 `json:"mean"`
	} `json:"classes"`
	Histogram []struct {
		Count int `json:"count"`
	} `json:"histogram"`
	Files  []string `json:"files"`
	Scores []struct {
		ID string  `json:"id"`
		BI float64 `json:"bi"`
	} `json:"scores"`
}

func decodeSummary(t *testing.T, out string) *testSummary {
	t.Helper()
	var s testSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	return &s
}

func TestMain(m *testing.M) {
	initLogging(false)
	os.Exit(m.Run())
}

func TestCalc_Matrix(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testClasses, 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-o", outDir, "--scores", "--workers", "2")
	require.NoError(t, err)

	s := decodeSummary(t, out)
	assert.NotEmpty(t, s.Run.ID)
	assert.Equal(t, "matrix", s.Run.Mode)
	assert.Equal(t, 4, s.Run.Entities)
	assert.Equal(t, 1.0, s.Run.Mean)
	require.Len(t, s.Classes, 2)
	assert.Equal(t, 1.0, s.Classes[0].Mean)
	assert.Len(t, s.Histogram, 20)
	assert.Equal(t, 4, s.Histogram[19].Count)
	assert.Len(t, s.Scores, 4)
	assert.Len(t, s.Files, 3)

	b, err := os.ReadFile(filepath.Join(outDir, report.ScoresFileName))
	require.NoError(t, err)
	assert.Equal(t, "ID\tClassification\tBI\nA\tx\t1\nB\tx\t1\nC\ty\t1\nD\ty\t1\n", string(b))

	out, err = runApp(t, home, "runs", "list")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, s.Run.ID, runs[0]["id"])

	out, err = runApp(t, home, "runs", "show", "--id", s.Run.ID, "--scores")
	require.NoError(t, err)
	shown := decodeSummary(t, out)
	assert.Equal(t, s.Run.ID, shown.Run.ID)
	assert.Len(t, shown.Scores, 4)
	assert.Len(t, shown.Classes, 2)

	exportDir := filepath.Join(dir, "export")
	_, err = runApp(t, home, "runs", "export", "--id", s.Run.ID, "-o", exportDir)
	require.NoError(t, err)
	exported, err := os.ReadFile(filepath.Join(exportDir, report.ScoresFileName))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(exported))

	out, err = runApp(t, home, "runs", "stats")
	require.NoError(t, err)
	var state map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, int64(1), state["runs"])
	assert.Equal(t, int64(4), state["scores"])

	_, err = runApp(t, home, "runs", "delete", "--id", s.Run.ID)
	require.NoError(t, err)
	_, err = runApp(t, home, "runs", "show", "--id", s.Run.ID)
	assert.Error(t, err)
}

func TestRuns_KeepBinSize(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testClasses, 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-o", outDir, "--bin-size", "0.25")
	require.NoError(t, err)
	s := decodeSummary(t, out)
	require.Len(t, s.Histogram, 4)

	out, err = runApp(t, home, "runs", "show", "--id", s.Run.ID)
	require.NoError(t, err)
	assert.Len(t, decodeSummary(t, out).Histogram, 4)

	exportDir := filepath.Join(dir, "export")
	_, err = runApp(t, home, "runs", "export", "--id", s.Run.ID, "-o", exportDir)
	require.NoError(t, err)

	want, err := os.ReadFile(filepath.Join(outDir, report.HistogramFileName))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(exportDir, report.HistogramFileName))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestCalc_NoSave(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testClasses, 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)

	out, err := runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-o", dir, "--no-save")
	require.NoError(t, err)
	s := decodeSummary(t, out)
	assert.Equal(t, 4, s.Run.Entities)
	assert.Empty(t, s.Scores)

	out, err = runApp(t, home, "runs", "list")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Empty(t, runs)
}

func TestCalc_YAML(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testClasses, 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)

	out, err := runApp(t, home, "--format", "yaml", "calc", "-c", classPath, "-d", matrixPath, "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "mode: matrix")
}

func TestCalc_SourceErrors(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testClasses, 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)

	_, err := runApp(t, home, "calc", "-c", classPath)
	assert.ErrorIs(t, err, calc.ErrNoSource)

	_, err = runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-p", matrixPath)
	assert.ErrorIs(t, err, errBothSources)

	_, err = runApp(t, home, "calc", "-d", matrixPath)
	assert.Error(t, err)

	_, err = runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-o", dir, "--bin-size", "1e-17")
	assert.Error(t, err)
}

func TestCalc_UnknownEntity(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", "ID\tClassification\nA\tx\nB\tx\nC\ty\n", 0600)
	matrixPath := writeTestFile(t, dir, "dm.tsv", testMatrix, 0600)

	_, err := runApp(t, home, "calc", "-c", classPath, "-d", matrixPath, "-o", dir)
	assert.Error(t, err)
}

func TestCalc_Profiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script index tool")
	}

	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testProfileClasses, 0600)
	profilesPath := writeTestFile(t, dir, "profiles.tsv", testProfiles, 0600)
	tool := writeTestFile(t, dir, "fast-mlst", fakeIndexTool, 0700)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, home, "calc", "-c", classPath, "-p", profilesPath, "-o", outDir, "--index-bin", tool, "--scores")
	require.NoError(t, err)

	s := decodeSummary(t, out)
	assert.Equal(t, "profile", s.Run.Mode)
	require.Len(t, s.Scores, 4)

	want := map[string]float64{"P1": 1, "P2": 1, "P3": 0, "P4": 0}
	for _, sc := range s.Scores {
		assert.Equal(t, want[sc.ID], sc.BI, sc.ID)
	}

	require.Len(t, s.Classes, 2)
	assert.Equal(t, "x", s.Classes[0].Class)
	assert.Equal(t, 1.0, s.Classes[0].Mean)
	assert.Equal(t, 0.0, s.Classes[1].Mean)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "index files should be removed")
}

func TestCalc_ProfilesToolFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script index tool")
	}

	home := t.TempDir()
	dir := t.TempDir()
	classPath := writeTestFile(t, dir, "class.tsv", testProfileClasses, 0600)
	profilesPath := writeTestFile(t, dir, "profiles.tsv", testProfiles, 0600)
	tool := writeTestFile(t, dir, "broken", "#!/bin/sh\necho broken >&2\nexit 1\n", 0700)

	_, err := runApp(t, home, "calc", "-c", classPath, "-p", profilesPath, "-o", dir, "--index-bin", tool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestInvalidFormat(t *testing.T) {
	_, err := runApp(t, t.TempDir(), "--format", "xml", "runs", "list")
	assert.Error(t, err)
}
