// File: cmd/walletpilot/main_test.go
package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"walletpilot"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestRun(t *testing.T) {
	t.Run("success exits zero", func(t *testing.T) {
		withArgs(t, "version")
		assert.Equal(t, 0, run(context.Background()))
	})

	t.Run("usage error exits one", func(t *testing.T) {
		withArgs(t, "no-such-command")
		assert.Equal(t, 1, run(context.Background()))
	})
}

func TestMain_UsesExitCode(t *testing.T) {
	withArgs(t, "version")
	var code = -1
	osExit = func(c int) { code = c }
	defer func() { osExit = os.Exit }()

	main()
	assert.Equal(t, 0, code)
}
