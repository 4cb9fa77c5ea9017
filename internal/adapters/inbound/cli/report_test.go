package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflectsonar/reflectsonar/internal/adapters/inbound/cli"
)

func fakeSonar(t *testing.T, projectStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	mux.HandleFunc("/api/components/show", func(w http.ResponseWriter, r *http.Request) {
		if projectStatus != http.StatusOK {
			http.Error(w, `{"errors":[{"msg":"nope"}]}`, projectStatus)
			return
		}
		_, _ = w.Write([]byte(`{"component":{"key":"demo","name":"Demo","qualifier":"TRK","analysisDate":"2026-03-01T10:00:00+0000"}}`))
	})
	reply("/api/issues/search", `{"total":1,"issues":[{"key":"AY-1","component":"demo:src/A.java","rule":"java:S2259","severity":"MAJOR","type":"BUG","message":"npe","line":2,"impacts":[{"softwareQuality":"RELIABILITY","severity":"HIGH"}]}]}`)
	reply("/api/measures/component", `{"component":{"measures":[{"metric":"coverage","value":"50.0"}]}}`)
	reply("/api/settings/values", `{"settings":[]}`)
	reply("/api/hotspots/search", `{"paging":{"total":0},"hotspots":[]}`)
	reply("/api/sources/show", `{"sources":[[1,"class A {"],[2,"  a.b();"],[3,"}"]]}`)
	reply("/api/rules/show", `{"rule":{"key":"java:S2259","name":"Null pointers should not be dereferenced","htmlDesc":"<p>Check for null.</p>"}}`)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runReport(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := cli.NewRootCmdForTest()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"report"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestReportCmd_WritesPDF(t *testing.T) {
	isolate(t)
	srv := fakeSonar(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "demo.pdf")

	out, err := runReport(t, "demo", "-u", srv.URL, "-t", "squ_test", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestReportCmd_JSON(t *testing.T) {
	isolate(t)
	srv := fakeSonar(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "demo.pdf")

	out, err := runReport(t, "demo", "-u", srv.URL, "-t", "squ_test", "-o", path, "--json")
	require.NoError(t, err)

	var got struct {
		Path     string `json:"path"`
		ReportID string `json:"report_id"`
		Mode     string `json:"mode"`
		Issues   int    `json:"issues"`
		Rules    int    `json:"rules"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.Path)
	assert.Equal(t, "MQR", got.Mode)
	assert.Equal(t, 1, got.Issues)
	assert.Equal(t, 1, got.Rules)
	assert.NotEmpty(t, got.ReportID)
}

func TestReportCmd_TokenFromEnvironment(t *testing.T) {
	isolate(t)
	srv := fakeSonar(t, http.StatusOK)
	t.Setenv("SONARQUBE_URL", srv.URL)
	t.Setenv("SONARQUBE_TOKEN", "squ_env")
	path := filepath.Join(t.TempDir(), "demo.pdf")

	_, err := runReport(t, "demo", "-o", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestReportCmd_MissingCredentials(t *testing.T) {
	isolate(t)
	_, err := runReport(t, "demo", "-u", "http://localhost:1")
	assert.True(t, errors.Is(err, cli.ErrMissingCredentials))
	assert.Equal(t, cli.ExitError, cli.ExitCode(err))
}

func TestReportCmd_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{"unauthorized", http.StatusUnauthorized, cli.ExitAuth},
		{"forbidden", http.StatusForbidden, cli.ExitAuth},
		{"not found", http.StatusNotFound, cli.ExitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			srv := fakeSonar(t, tt.status)
			_, err := runReport(t, "demo", "-u", srv.URL, "-t", "squ_test", "-o", filepath.Join(t.TempDir(), "x.pdf"))
			require.Error(t, err)
			assert.Equal(t, tt.want, cli.ExitCode(err))
		})
	}
}

func TestReportCmd_MissingOutputDirectory(t *testing.T) {
	isolate(t)
	srv := fakeSonar(t, http.StatusOK)

	_, err := runReport(t, "demo", "-u", srv.URL, "-t", "squ_test", "-o", filepath.Join(t.TempDir(), "missing", "x.pdf"))
	require.Error(t, err)
	assert.Equal(t, cli.ExitFile, cli.ExitCode(err))
}

func TestReportCmd_RequiresProjectKey(t *testing.T) {
	_, err := runReport(t)
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := cli.NewRootCmdForTest()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "reflectsonar dev")
}

func TestHistoryCmd(t *testing.T) {
	isolate(t)
	srv := fakeSonar(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "demo.pdf")
	_, err := runReport(t, "demo", "-u", srv.URL, "-t", "squ_test", "-o", path)
	require.NoError(t, err)

	var out bytes.Buffer
	root := cli.NewRootCmdForTest()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "demo", "--json"})
	require.NoError(t, root.Execute())

	var entries []struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Path)
	assert.Equal(t, "MQR", entries[0].Mode)
}
