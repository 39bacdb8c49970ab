package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capture = "event: delta\r\n" +
	`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\r\n\r\n" +
	": keep-alive\n\n" +
	`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n" +
	"data: [DONE]\n\n"

func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestParse_Events(t *testing.T) {
	out, _, err := runCmd(t, capture, "parse")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"event":"delta","data":"{\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}"}`, lines[0])
	assert.JSONEq(t, `{"data":"[DONE]"}`, lines[2])
}

func TestParse_ChunkSizeDoesNotMatter(t *testing.T) {
	whole, _, err := runCmd(t, capture, "parse")
	require.NoError(t, err)

	for _, size := range []string{"1", "2", "7"} {
		out, _, err := runCmd(t, capture, "parse", "--chunk", size)
		require.NoError(t, err)
		assert.Equal(t, whole, out, "chunk %s", size)
	}
}

func TestParse_JSONPath(t *testing.T) {
	input := capture[:len(capture)-len("data: [DONE]\n\n")] +
		"data: not json\n\n" +
		"data: [DONE]\n\n" +
		`data: {"choices":[{"delta":{"content":"after"}}]}` + "\n\n"

	out, errOut, err := runCmd(t, input, "parse", "--jsonpath", "$.choices[0].delta.content")
	require.NoError(t, err)
	assert.Equal(t, "\"Hel\"\n\"lo\"\n", out)
	assert.Contains(t, errOut, "skipping event")
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.sse")
	require.NoError(t, os.WriteFile(path, []byte("data: from file\n\n"), 0o600))

	out, _, err := runCmd(t, "", "parse", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"from file"}`, strings.TrimSpace(out))

	_, _, err = runCmd(t, "", "parse", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestParse_InvalidUTF8(t *testing.T) {
	const input = "data: ok\n\ndata: \xff\n\n"

	// The whole chunk is rejected, including the valid event before the bad byte.
	out, _, err := runCmd(t, input, "parse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
	assert.Empty(t, out)

	// Events from earlier chunks are still printed.
	out, _, err = runCmd(t, input, "parse", "--chunk", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
	assert.JSONEq(t, `{"data":"ok"}`, strings.TrimSpace(out))
}
