package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
)

// --- Test helpers ---

type apiRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []apiRequest
	status   int
	response any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	data, _ := io.ReadAll(r.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, apiRequest{Method: r.Method, Path: r.URL.RequestURI(), Body: body})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func (f *fakeAPI) last(t *testing.T) apiRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no requests")
	}
	return f.requests[len(f.requests)-1]
}

func runCLI(t *testing.T, api *fakeAPI, stdin string, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(srv.URL) }
	outputFn := func() *Output { return &Output{format: FormatJSON, w: &stdout, errW: &stderr} }

	root := &cobra.Command{Use: "launchpad", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewConfigCmd(clientFn, outputFn),
		NewLaunchCmd(clientFn, outputFn),
		NewRunCmd(clientFn, outputFn),
		NewTokenCmd(clientFn, outputFn),
	)
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Manifest Tests ---

func TestSplitRef(t *testing.T) {
	tests := []struct {
		ref     string
		ns      string
		name    string
		wantErr bool
	}{
		{"etl", "default", "etl", false},
		{"analytics/etl", "analytics", "etl", false},
		{"/etl", "", "", true},
		{"a/b/c", "", "", true},
	}
	for _, tt := range tests {
		ns, name, err := splitRef(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitRef(%q) error = %v", tt.ref, err)
			continue
		}
		if ns != tt.ns || name != tt.name {
			t.Errorf("splitRef(%q) = %s, %s", tt.ref, ns, name)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"CoreInstanceCount=5", "FailIfClusterRunning=true", "ClusterName=etl-adhoc", "Empty="})
	if err != nil {
		t.Fatal(err)
	}
	if got["CoreInstanceCount"] != 5 || got["FailIfClusterRunning"] != true || got["ClusterName"] != "etl-adhoc" || got["Empty"] != "" {
		t.Errorf("unexpected values %#v", got)
	}

	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Error("expected error for missing =")
	}
}

func TestReadManifests_MultiDocument(t *testing.T) {
	docs, err := readManifests("-", strings.NewReader("name: a\n---\nname: b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[1]["name"] != "b" {
		t.Errorf("unexpected documents %v", docs)
	}

	if _, err := readManifests("-", strings.NewReader("")); err == nil {
		t.Error("empty input should fail")
	}
}

// --- Command Tests ---

func TestConfigApply(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"data": map[string]any{"namespace": "analytics", "name": "etl"}}}
	file := writeFile(t, `
name: etl
namespace: analytics
description: nightly etl
profile: instance-groups
instance_groups:
  core_instance_count: 4
`)

	if _, err := runCLI(t, api, "", "config", "apply", "-f", file); err != nil {
		t.Fatalf("apply: %v", err)
	}

	req := api.last(t)
	if req.Method != http.MethodPut || req.Path != "/api/v1/configurations/analytics/etl" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	def := req.Body["definition"].(map[string]any)
	if def["profile"] != "instance-groups" || req.Body["description"] != "nightly etl" {
		t.Errorf("unexpected body %#v", req.Body)
	}
}

func TestConfigApply_Record(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"data": map[string]any{}}}
	stdin := `{"ConfigurationName": "etl", "ClusterConfiguration": {"Name": "etl"}}`

	if _, err := runCLI(t, api, stdin, "config", "apply", "-f", "-", "--record"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	req := api.last(t)
	if req.Path != "/api/v1/configurations/default/etl" || req.Body["record"] == nil {
		t.Errorf("unexpected request %s %#v", req.Path, req.Body)
	}
}

func TestConfigResolve(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"data": map[string]any{"configuration": map[string]any{"Name": "etl-adhoc"}}}}

	out, err := runCLI(t, api, "", "config", "resolve", "analytics/etl", "--override", "ClusterName=etl-adhoc", "--override", "CoreInstanceCount=3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	req := api.last(t)
	overrides := req.Body["overrides"].(map[string]any)
	if overrides["CoreInstanceCount"] != float64(3) || overrides["ClusterName"] != "etl-adhoc" {
		t.Errorf("unexpected overrides %#v", overrides)
	}
	if !strings.Contains(out, "etl-adhoc") {
		t.Errorf("resolved configuration should be printed, got %q", out)
	}
}

func TestLaunchApply(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"data": map[string]any{"name": "start-etl", "spec": map[string]any{"kind": "launch-cluster"}}}}
	file := writeFile(t, `
namespace: analytics
name: start-etl
spec:
  kind: launch-cluster
  configuration: etl
  start_timeout_sec: 3600
`)

	if _, err := runCLI(t, api, "", "launch", "apply", "-f", file); err != nil {
		t.Fatalf("apply: %v", err)
	}
	req := api.last(t)
	spec := req.Body["spec"].(map[string]any)
	if req.Path != "/api/v1/launch-functions/analytics/start-etl" || spec["start_timeout_sec"] != float64(3600) {
		t.Errorf("unexpected request %s %#v", req.Path, req.Body)
	}
}

func TestRunStart(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, response: map[string]any{"data": map[string]any{"id": "r-1", "status": "PENDING"}}}

	_, err := runCLI(t, api, "", "run", "start", "analytics/start-etl",
		"--input", "FailIfClusterRunning=false",
		"--override", "CoreInstanceCount=8",
		"--idempotency-key", "k-1",
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	req := api.last(t)
	if req.Path != "/api/v1/launch-functions/analytics/start-etl/runs" || req.Body["idempotency_key"] != "k-1" {
		t.Fatalf("unexpected request %s %#v", req.Path, req.Body)
	}
	input := req.Body["input"].(map[string]any)
	if input["FailIfClusterRunning"] != false {
		t.Errorf("unexpected input %#v", input)
	}
	if input["ClusterConfigurationOverrides"].(map[string]any)["CoreInstanceCount"] != float64(8) {
		t.Errorf("overrides should be nested, got %#v", input)
	}
}

func TestRunList_Filters(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"data": []any{}}}

	if _, err := runCLI(t, api, "", "run", "list", "--namespace", "analytics", "--status", "FAILED", "--limit", "5"); err != nil {
		t.Fatalf("list: %v", err)
	}
	req := api.last(t)
	if !strings.Contains(req.Path, "status=FAILED") || !strings.Contains(req.Path, "namespace=analytics") || !strings.Contains(req.Path, "limit=5") {
		t.Errorf("unexpected query %s", req.Path)
	}
}

func TestTokenFailure(t *testing.T) {
	api := &fakeAPI{status: http.StatusAccepted, response: map[string]any{"data": map[string]any{}}}

	if _, err := runCLI(t, api, "", "token", "failure", "tok-1", "--error", "ClusterStartFailed", "--cause", "no capacity"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	req := api.last(t)
	if req.Path != "/api/v1/tokens/tok-1/failure" || req.Body["error"] != "ClusterStartFailed" {
		t.Errorf("unexpected request %s %#v", req.Path, req.Body)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	api := &fakeAPI{
		status:   http.StatusNotFound,
		response: map[string]any{"error": map[string]any{"code": "NOT_FOUND", "message": "run not found"}},
	}

	_, err := runCLI(t, api, "", "run", "show", "missing")
	if err == nil || err.Error() != "NOT_FOUND: run not found" {
		t.Errorf("unexpected error %v", err)
	}
}

// --- Output Tests ---

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOutput_YAMLUsesJSONNames(t *testing.T) {
	var stdout bytes.Buffer
	out := &Output{format: FormatYAML, w: &stdout, errW: io.Discard}

	out.Print(nil, nil, RunResponse{LaunchFunction: "launch-etl", Status: "RUNNING"})

	if !strings.Contains(stdout.String(), "launch_function: launch-etl") {
		t.Errorf("unexpected yaml output:\n%s", stdout.String())
	}
}

func TestOutput_TableDocumentIsYAML(t *testing.T) {
	var stdout bytes.Buffer
	out := &Output{format: FormatTable, w: &stdout, errW: io.Discard}

	out.Document(map[string]any{"name": "etl"})

	if strings.TrimSpace(stdout.String()) != "name: etl" {
		t.Errorf("unexpected document output %q", stdout.String())
	}
}
