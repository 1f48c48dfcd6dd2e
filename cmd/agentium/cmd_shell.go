package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var shellCmd = &cobra.Command{
	Use:   "shell [command line]",
	Short: "Run an interactive command on the agent's pseudoterminal",
	Long: `Run a command in the foreground on the agent, relaying this terminal to the
child's pseudoterminal. With no arguments a /bin/sh is started. A quoted
command line is split shell-style before it is sent.`,
	Example: `  agentium shell
  agentium shell "ls -la /tmp"`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	argv := []string{"/bin/sh"}
	if len(args) > 0 {
		var err error
		argv, err = shellquote.Split(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(argv) == 0 {
			return fmt.Errorf("empty command line")
		}
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("setting raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)
	}

	res, err := c.Exec(argv, nil, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	if res.Signaled() {
		return fmt.Errorf("child killed by signal %d", res.WaitStatus&0x7f)
	}
	if code := res.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}
