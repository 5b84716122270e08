//go:build unix

package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ipckit/internal/fifo"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ipckit/internal/pipe"
)

func testServer() *Server {
	return &Server{
		log:     logging.NewNop(),
		manager: pipe.New(),
	}
}

func TestExecuteReturnsCommandOutput(t *testing.T) {
	s := testServer()

	out := s.execute(context.Background(), "c1", []byte("echo hi"))
	assert.Equal(t, "hi\n", string(out))
	assert.Equal(t, 0, s.manager.Len())
}

func TestExecuteMarksTruncatedOutput(t *testing.T) {
	s := testServer()

	out := s.execute(context.Background(), "c1", []byte("yes x | head -c 10000"))
	require.LessOrEqual(t, len(out), fifo.MaxResponse)
	assert.True(t, strings.HasSuffix(string(out), "[output truncated]"),
		"capped output must carry the truncation marker")
}

func TestExecuteReportsOpenFailure(t *testing.T) {
	s := testServer()
	s.manager = pipe.New(pipe.WithShell("/nonexistent/shell"))

	out := s.execute(context.Background(), "c1", []byte("true"))
	assert.True(t, strings.HasPrefix(string(out), "error: "))
	assert.Equal(t, 0, s.manager.Len())
}
