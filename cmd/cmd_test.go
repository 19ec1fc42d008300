// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domharvest/internal/action"
	"github.com/xkilldash9x/domharvest/internal/observability"
)

const shelfHTML = `<html><body>
<ul id="shelf">
  <li class="book"><h3 class="title">Dune</h3><span class="price">9.99</span><a class="link" href="/dune">more</a></li>
  <li class="book"><h3 class="title">Emma</h3><span class="price">4.50</span></li>
</ul>
<form><input id="q" class="search-box"><button class="go">Search</button></form>
</body></html>`

// executeCommand runs a fresh command tree with the static engine and
// returns what it wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--engine", "static", "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "domharvest version "+Version)
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "domharvest version "+Version+"\n", out)
}

func TestRootCmd_InvalidEngine(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--engine", "netscape", "actions"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine 'netscape'")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := executeCommand(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "actions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestRootCmd_ConfigFileAndEnv(t *testing.T) {
	cfgPath := writeFile(t, "domharvest.yaml", "resolver:\n  action_timeout: 2s\n")
	t.Setenv("DOMHARVEST_ACTION_TRUNCATE_LENGTH", "12")

	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var seen bool
	cmd := newRootCmd()
	probe := newActionsCmd()
	probe.Use = "probe"
	probe.RunE = func(c *cobra.Command, _ []string) error {
		cfg, err := configFrom(c)
		require.NoError(t, err)
		assert.Equal(t, "2s", cfg.Resolver.ActionTimeout.String())
		assert.Equal(t, 12, cfg.Action.TruncateLength)
		assert.Equal(t, "static", cfg.Browser.Engine)
		seen = true
		return nil
	}
	cmd.AddCommand(probe)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "--engine", "static", "probe"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.True(t, seen)
}

func TestActionsCmd(t *testing.T) {
	out, err := executeCommand(t, "actions")
	require.NoError(t, err)

	var got []action.Descriptor
	require.NoError(t, jsoniter.UnmarshalFromString(out, &got))
	assert.Len(t, got, len(action.Catalog()))

	out, err = executeCommand(t, "actions", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "type: key_press")

	_, err = executeCommand(t, "actions", "--format", "xml")
	require.Error(t, err)
}

func TestExtractCmd(t *testing.T) {
	page := writeFile(t, "shelf.html", shelfHTML)

	t.Run("multiple containers", func(t *testing.T) {
		spec := writeFile(t, "spec.yaml", `
containerSelector: li.book
multiple: true
fields:
  - name: title
  - name: price
    selector: .price
  - name: link
    selector: a
    type: href
`)
		out, err := executeCommand(t, "extract", "--spec", spec, "--file", page)
		require.NoError(t, err)
		assert.JSONEq(t, `[
			{"title":"Dune","price":"9.99","link":"/dune"},
			{"title":"Emma","price":"4.50","link":null}
		]`, out)
	})

	t.Run("output file", func(t *testing.T) {
		spec := writeFile(t, "spec.json", `{"containerXpath":"//ul[@id='shelf']","fields":[{"name":"first","selector":"h3"}]}`)
		dest := filepath.Join(t.TempDir(), "out.json")
		out, err := executeCommand(t, "extract", "-s", spec, "--file", page, "-o", dest)
		require.NoError(t, err)
		assert.Empty(t, out)

		written, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.JSONEq(t, `{"first":"Dune"}`, string(written))
	})

	t.Run("no containers", func(t *testing.T) {
		spec := writeFile(t, "spec.yaml", "containerSelector: .missing\nfields:\n  - name: title\n")
		_, err := executeCommand(t, "extract", "--spec", spec, "--file", page)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no container elements found with selector: .missing")
	})

	t.Run("page required", func(t *testing.T) {
		spec := writeFile(t, "spec.yaml", "containerSelector: li\nfields:\n  - name: title\n")
		_, err := executeCommand(t, "extract", "--spec", spec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--url or --file")
	})

	t.Run("url and file are exclusive", func(t *testing.T) {
		spec := writeFile(t, "spec.yaml", "containerSelector: li\nfields:\n  - name: title\n")
		_, err := executeCommand(t, "extract", "--spec", spec, "--file", page, "--url", "https://example.com")
		require.Error(t, err)
	})
}

func TestActCmd(t *testing.T) {
	page := writeFile(t, "shelf.html", shelfHTML)

	t.Run("replays steps in order", func(t *testing.T) {
		typeStep := writeFile(t, "type.json", `{"type":"input","cssSelector":"#q","value":"dune"}`)
		clickStep := writeFile(t, "click.yaml", "type: click\ncssSelector: button.go\n")

		out, err := executeCommand(t, "act", "--file", page, "--step", typeStep, "--step", clickStep)
		require.NoError(t, err)
		assert.Contains(t, out, `Input "dune" into element with CSS selector: #q (original: #q)`)
		assert.Contains(t, out, "Clicked element with CSS selector: button.go (original: button.go)")
	})

	t.Run("navigation step loads the page", func(t *testing.T) {
		nav := writeFile(t, "nav.json", `{"type":"navigation","url":"file://`+filepath.ToSlash(page)+`"}`)
		extractStep := writeFile(t, "extract.json", `{"type":"extract_dom_content","containerSelector":"#shelf","fields":[{"name":"title"}]}`)

		out, err := executeCommand(t, "act", "--step", nav, "--step", extractStep)
		require.NoError(t, err)
		assert.Contains(t, out, "Navigated to URL: file://")
		assert.Contains(t, out, `{"title":"Dune"}`)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"type":"hover","cssSelector":"#q"}`)
		never := writeFile(t, "never.json", `{"type":"click","cssSelector":"button.go"}`)

		out, err := executeCommand(t, "act", "--file", page, "--step", bad, "--step", never)
		require.Error(t, err)
		assert.ErrorIs(t, err, action.ErrUnknownStep)
		assert.Contains(t, err.Error(), "step 1")
		assert.NotContains(t, out, "Clicked")
	})
}

func TestResolveCmd(t *testing.T) {
	page := writeFile(t, "shelf.html", shelfHTML)

	out, err := executeCommand(t, "resolve", "--file", page, "--xpath", "//li[2]/h3", "--css", ".title")
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":"xpath","selector":"//li[2]/h3","kind":"live","text":"Emma"}`, out)

	out, err = executeCommand(t, "resolve", "--file", page, "--xpath", "//h4", "--tag", "button", "--text", "Search")
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":"hint","selector":".//button[normalize-space(.)='Search']","kind":"live","text":"Search"}`, out)

	out, err = executeCommand(t, "resolve", "--file", page, "--name", "search box")
	require.NoError(t, err)
	assert.Contains(t, out, `"strategy":"generic"`)

	_, err = executeCommand(t, "resolve", "--file", page, "--css", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not resolve 'table'")

	_, err = executeCommand(t, "resolve", "--file", page)
	require.Error(t, err)
}
