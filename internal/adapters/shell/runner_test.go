package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesStdout(t *testing.T) {
	requireSh(t)
	out, err := NewExecRunner().Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo 4242"}})
	require.NoError(t, err)
	assert.Equal(t, "4242\n", string(out))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireSh(t)
	_, err := NewExecRunner().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'queue down' >&2; exit 3"},
	})
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "queue down", cmdErr.Stderr)
	assert.Contains(t, err.Error(), "exit status 3: queue down")
}

func TestExecRunner_DirEnvAndStreaming(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	var buf bytes.Buffer
	out, err := NewExecRunner().Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", `echo "$IVT_TEST_VALUE $(pwd)"`},
		Dir:    dir,
		Env:    []string{"IVT_TEST_VALUE=hello"},
		Stdout: &buf,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, buf.String(), "hello ")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Command{Name: "ivt-definitely-not-a-binary"})
	require.Error(t, err)
	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "sbatch --parsable run.sh", Command{Name: "sbatch", Args: []string{"--parsable", "run.sh"}}.String())
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ Command) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	var inner Runner = blockingRunner{}
	assert.Equal(t, inner, WithTimeout(inner, 0))

	r := WithTimeout(inner, 20*time.Millisecond)
	_, err := r.Run(context.Background(), Command{Name: "sbatch"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "sbatch: timed out after 20ms")
}
