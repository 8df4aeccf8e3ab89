package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/epptmpl/pkg/templating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkResponse = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<epp xmlns="urn:ietf:params:xml:ns:epp-1.0">
  <response>
    <result code="1000"><msg>Command completed successfully</msg></result>
    <resData>
      <domain:chkData xmlns:domain="urn:ietf:params:xml:ns:domain-1.0">
        <domain:cd><domain:name avail="1">a.com</domain:name></domain:cd>
      </domain:chkData>
    </resData>
    <trID><clTRID>ABC-1</clTRID><svTRID>SRV-1</svTRID></trID>
  </response>
</epp>`

// writeTestConfig writes a config that keeps every cache file inside a
// temporary directory and returns its path.
func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	config := Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
	}
	config.Server.CacheBackend = backend
	config.Server.CacheDir = filepath.Join(dir, "cache")
	config.Server.DatabasePath = filepath.Join(dir, "db", "cache.db")
	config.Server.LogLevel = "error"
	config.Templates.CacheEnabled = true

	data, err := json.Marshal(config)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRenderCommand(t *testing.T) {
	for _, backend := range []string{backendMemory, backendFile, backendSQLite} {
		t.Run(backend, func(t *testing.T) {
			configPath := writeTestConfig(t, backend)

			out, _, err := execute(t, "", "-c", configPath, "render", "domain/check",
				"--set", "names=[a.com, b.net]", "--set", "clTRID=T-1")
			require.NoError(t, err)
			assert.Contains(t, out, "<domain:name>a.com</domain:name>\n        <domain:name>b.net</domain:name>")
			assert.Contains(t, out, "<clTRID>T-1</clTRID>")

			again, _, err := execute(t, "", "-c", configPath, "render", "domain/check",
				"--set", "names=[a.com, b.net]", "--set", "clTRID=T-1")
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}
}

func TestRenderCommand_DataAndOutput(t *testing.T) {
	configPath := writeTestConfig(t, backendMemory)
	dir := t.TempDir()

	dataPath := filepath.Join(dir, "info.yaml")
	require.NoError(t, os.WriteFile(dataPath, []byte("name: example.com\npassword: s3cret\nclTRID: T-2\n"), 0644))
	outPath := filepath.Join(dir, "request.xml")

	_, stderr, err := execute(t, "", "-c", configPath, "render", "domain/info", "-d", dataPath, "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Rendered domain/info")

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), `<domain:name hosts="all">example.com</domain:name>`)
	assert.Contains(t, string(written), "<domain:pw>s3cret</domain:pw>")

	out, _, err := execute(t, `{"ids": ["C1"], "clTRID": "T-3"}`, "-c", configPath, "render", "contact/check", "-d", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "<contact:id>C1</contact:id>")
}

func TestRenderCommand_TemplateDir(t *testing.T) {
	configPath := writeTestConfig(t, backendMemory)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.xml"), []byte(`<hello>{{ upper who }}</hello>`), 0644))

	out, _, err := execute(t, "", "-c", configPath, "-t", dir, "render", "hello", "--set", "who=world")
	require.NoError(t, err)
	assert.Equal(t, "<?xml version=\"1.0\"?>\n<hello>WORLD</hello>\n", out)
}

func TestRenderCommand_Errors(t *testing.T) {
	configPath := writeTestConfig(t, backendMemory)

	_, _, err := execute(t, "", "-c", configPath, "render", "domain/transfer")
	var lookupErr *templating.LookupError
	assert.ErrorAs(t, err, &lookupErr)

	_, _, err = execute(t, "", "-c", configPath, "render", "domain/info")
	var exprErr *templating.ExpressionError
	assert.ErrorAs(t, err, &exprErr)

	_, _, err = execute(t, "", "-c", configPath, "render", "domain/info", "--set", "novalue")
	assert.Error(t, err)

	_, _, err = execute(t, "", "-c", configPath, "render")
	assert.Error(t, err, "render requires a template id")
}

func TestListCommand(t *testing.T) {
	configPath := writeTestConfig(t, backendMemory)

	out, stderr, err := execute(t, "", "-c", configPath, "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "6 templates")
	assert.Equal(t, []string{
		"contact/check.xml",
		"contact/info.xml",
		"domain/check.xml",
		"domain/info.xml",
		"layout.xml",
		"poll/request.xml",
	}, strings.Fields(out))
}

func TestCacheClearCommand(t *testing.T) {
	configPath := writeTestConfig(t, backendFile)

	_, _, err := execute(t, "", "-c", configPath, "render", "poll/request")
	require.NoError(t, err)

	_, stderr, err := execute(t, "", "-c", configPath, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Cache cleared")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	files, err := filepath.Glob(filepath.Join(config.Server.CacheDir, "cache", "*.json"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFlattenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.xml")
	require.NoError(t, os.WriteFile(path, []byte(checkResponse), 0644))

	out, _, err := execute(t, "", "flatten", path)
	require.NoError(t, err)
	assert.Contains(t, out, "epp.response.result.@attributes.code = 1000\n")
	assert.Contains(t, out, "epp.response.trID.svTRID = SRV-1\n")

	out, _, err = execute(t, "", "flatten", path, "--get", "epp.response.result.msg")
	require.NoError(t, err)
	assert.Equal(t, "Command completed successfully\n", out)

	out, _, err = execute(t, checkResponse, "flatten", "-", "--get", "epp.response.trID.*", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"clTRID": "ABC-1", "svTRID": "SRV-1"}`, out)

	_, _, err = execute(t, "", "flatten", path, "--get", "epp.nothing")
	assert.Error(t, err)

	_, _, err = execute(t, "<a><b></a>", "flatten", "-")
	assert.Error(t, err)
}
