// internal/wallet/metamask/prompter.go
package metamask

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

const manualImportMessage = `No recovery phrase or password configured.
Import your wallet in the MetaMask tab of the browser, then press Enter here to continue.
`

// Prompter hands control to the user while the wallet is imported by hand.
type Prompter interface {
	WaitForManualImport(ctx context.Context) error
}

// TerminalPrompter prints instructions and waits for a line on its input.
// One buffered reader is kept across calls so input read ahead by one prompt is
// available to the next.
type TerminalPrompter struct {
	mu  sync.Mutex // serializes reads, including one abandoned on cancellation
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return NewPrompter(os.Stdin, os.Stderr)
}

// NewPrompter prompts on out and reads from in.
func NewPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// WaitForManualImport blocks until Enter is pressed or ctx is done. A reader blocked
// on a terminal cannot be interrupted, so on cancellation the read is abandoned.
func (p *TerminalPrompter) WaitForManualImport(ctx context.Context) error {
	fmt.Fprint(p.out, manualImportMessage)

	done := make(chan error, 1)
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, err := p.in.ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
