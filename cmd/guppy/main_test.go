package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCheckCmdSucceedsOnAddFixture(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "add"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "add:")
	require.Contains(t, out.String(), "block(s)")
}

func TestCheckCmdSucceedsOnBellFixture(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "bell"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "bell:")
}

func TestCheckCmdSucceedsOnSwapFixture(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "swap"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "swap:")
}

func TestCheckCmdReportsDiagnosticOnBadFixture(t *testing.T) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"check", "--no-color", "bad"})

	err := root.Execute()
	require.Error(t, err)
}

func TestCheckCmdUnknownFixture(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "does-not-exist"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such fixture")
}

func TestCheckCmdRunsAllFixturesByDefault(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check"})

	err := root.Execute()
	require.Error(t, err, "the bundled `bad` fixture always fails, so the default run reports it")
}
