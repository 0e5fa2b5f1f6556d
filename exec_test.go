package prototype_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	prototype "github.com/aoldershaw/bootc-image-prototype"
)

type ExecSuite struct {
	suite.Suite
	*require.Assertions
}

func (s *ExecSuite) TestCapturesOutput() {
	executor := prototype.NewExecutor(prototype.PrivilegeNone, nil)

	result, err := executor.Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	s.NoError(err)

	s.Equal(0, result.ExitCode)
	s.Equal("hello\n", result.Stdout)
	s.Equal("oops\n", result.Stderr)
}

func (s *ExecSuite) TestStreamsOutput() {
	var out bytes.Buffer
	executor := prototype.NewExecutor(prototype.PrivilegeNone, &out)

	result, err := executor.Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	s.NoError(err)

	s.Empty(result.Stdout)
	s.Equal("oops\n", result.Stderr)
	s.Contains(out.String(), "hello")
	s.Contains(out.String(), "oops")
}

func (s *ExecSuite) TestStderrTailOnly() {
	var out bytes.Buffer
	executor := prototype.NewExecutor(prototype.PrivilegeNone, &out)

	result, err := executor.Run(context.Background(), "sh", "-c", "head -c 200000 /dev/zero | tr '\\0' x >&2; echo >&2; echo it broke >&2; exit 1")

	var exitErr *prototype.ExitError
	s.True(errors.As(err, &exitErr))
	s.Equal("sh exited with status 1: it broke", exitErr.Error())

	s.Less(len(result.Stderr), 200000)
	s.True(strings.HasSuffix(result.Stderr, "it broke\n"))
	s.Greater(out.Len(), 200000)
}

func (s *ExecSuite) TestArgumentsAreNotSplit() {
	executor := prototype.NewExecutor(prototype.PrivilegeNone, nil)

	result, err := executor.Run(context.Background(), "sh", "-c", `printf '%s|' "$@"`, "sh", "a b", "c")
	s.NoError(err)

	s.Equal("a b|c|", result.Stdout)
}

func (s *ExecSuite) TestNonZeroExit() {
	executor := prototype.NewExecutor(prototype.PrivilegeNone, nil)

	result, err := executor.Run(context.Background(), "sh", "-c", "echo first >&2; echo it broke >&2; exit 3")

	var exitErr *prototype.ExitError
	s.True(errors.As(err, &exitErr))
	s.Equal(3, exitErr.ExitCode)
	s.Equal(3, result.ExitCode)
	s.Equal("sh exited with status 3: it broke", exitErr.Error())
}

func (s *ExecSuite) TestMissingCommand() {
	executor := prototype.NewExecutor(prototype.PrivilegeNone, nil)

	_, err := executor.Run(context.Background(), "bootc-image-prototype-does-not-exist")
	s.Error(err)

	var exitErr *prototype.ExitError
	s.False(errors.As(err, &exitErr))
}

func (s *ExecSuite) TestPrivilegeModes() {
	s.Equal("none", prototype.PrivilegeNone.String())
	s.Equal("root", prototype.PrivilegeRoot.String())
	s.Equal("sudo", prototype.PrivilegeSudo.String())

	if prototype.IsRoot() {
		s.Equal(prototype.PrivilegeRoot, prototype.DetectPrivilege())
	} else {
		s.Equal(prototype.PrivilegeSudo, prototype.DetectPrivilege())
	}
}

func TestExec(t *testing.T) {
	suite.Run(t, &ExecSuite{
		Assertions: require.New(t),
	})
}
