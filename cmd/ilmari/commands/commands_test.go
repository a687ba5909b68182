package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
)

func TestExactlyOneOrAll(t *testing.T) {
	assert.NoError(t, exactlyOneOrAll(true, nil))
	assert.NoError(t, exactlyOneOrAll(false, []string{"R1"}))

	err := exactlyOneOrAll(true, []string{"R1"})
	assert.Equal(t, opserrors.KindInput, opserrors.KindOf(err))

	err = exactlyOneOrAll(false, nil)
	assert.Equal(t, opserrors.KindInput, opserrors.KindOf(err))
	assert.Equal(t, 64, opserrors.GetExitCode(err))
}

func TestReported_KeepsExitCode(t *testing.T) {
	err := reported(opserrors.SnapshotNotFound("R1"))

	var silent *silentError
	require.True(t, errors.As(err, &silent))
	assert.Equal(t, 66, silent.code)
	assert.Equal(t, opserrors.KindSnapshotNotFound, opserrors.KindOf(err))

	require.True(t, errors.As(reported(nil), &silent))
	assert.Equal(t, 1, silent.code)
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "", "", "")
	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "unknown", Commit)
}

func TestDevicesCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	credFile := filepath.Join(dir, "rotated_passwords.csv")
	require.NoError(t, os.WriteFile(credFile,
		[]byte("Device,Hostname,Username,New_Password\n10.0.0.1,R1,admin,hunter2\n10.0.0.2,,ops,s3cret\n"), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"credentials:\n  file: "+credFile+"\nstorage:\n  base_dir: "+dir+"\nlogging:\n  level: error\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"devices", "--config", cfgPath, "--output", "json", "--no-color"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "10.0.0.1", rows[0]["device"])
	assert.Equal(t, "R1", rows[0]["alias"])
	assert.Equal(t, "arista_eos", rows[1]["type"])
	assert.NotContains(t, out.String(), "hunter2")
}

func TestVersionCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  base_dir: "+dir+"\nlogging:\n  level: error\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--config", cfgPath, "--output", "json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, runtime.Version(), info["go_version"])
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info["platform"])
	assert.NotEmpty(t, info["version"])
}

func TestCurrentBuild_KeepsLinkerValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	SetVersionInfo("2.0.0", "abc123", "", "")
	info := currentBuild()
	assert.Equal(t, "2.0.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
}
