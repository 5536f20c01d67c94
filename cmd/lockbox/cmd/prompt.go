package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmcleod/lockbox/vault"
)

var errNotConfirmed = errors.New("passphrases do not match")

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is a terminal and as plain lines otherwise, so the
// commands can be scripted.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{
		in:  bufio.NewReader(cmd.InOrStdin()),
		out: cmd.ErrOrStderr(),
		fd:  -1,
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || s == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if !p.tty {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}

// newSecret asks for a secret twice.
func (p *prompter) newSecret(prompt string) (string, error) {
	first, err := p.secret(prompt)
	if err != nil {
		return "", err
	}
	second, err := p.secret("Repeat to confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errNotConfirmed
	}
	return first, nil
}

func (p *prompter) confirm(prompt string) (bool, error) {
	ans, err := p.line(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// unlock prompts for the master passphrase and returns an Unlocked session.
// On first use the passphrase is enrolled and the recovery key handshake
// runs before the session is returned.
func unlock(ctx context.Context, p *prompter, v *vault.Vault) (*vault.Session, error) {
	enrolled, err := v.Enrolled(ctx)
	if err != nil {
		return nil, err
	}
	var pass string
	if enrolled {
		pass, err = p.secret("Master passphrase: ")
	} else {
		fmt.Fprintln(p.out, "No vault found. Choose a master passphrase (at least 12 characters).")
		pass, err = p.newSecret("New master passphrase: ")
	}
	if err != nil {
		return nil, err
	}

	s, err := v.Unlock(ctx, pass)
	if err != nil {
		return nil, err
	}
	if s.State() == vault.AwaitingFirstEnrollment {
		if err := confirmRecoveryKey(p, s); err != nil {
			s.Lock()
			return nil, err
		}
	}
	return s, nil
}

// confirmRecoveryKey shows the recovery key until the user confirms it was
// saved.
func confirmRecoveryKey(p *prompter, s *vault.Session) error {
	key, err := s.RecoveryKey()
	if err != nil {
		return err
	}
	for {
		fmt.Fprintf(p.out, "\nRecovery key (shown only now, store it somewhere safe):\n\n    %s\n\n", key)
		ok, err := p.confirm("Have you saved the recovery key?")
		if err != nil {
			return err
		}
		if ok {
			return s.ConfirmRecoverySaved()
		}
	}
}
