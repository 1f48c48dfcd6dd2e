package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <program> [args...]",
	Short: "Execute a program on the agent",
	Long: `Execute a program on the agent. Foreground runs relay output until the
child exits and propagate its exit code; --background detaches the child and
prints its pid.`,
	Example: `  agentium exec -- /bin/uname -a
  agentium exec --background -- /usr/bin/touch /tmp/marker
  agentium exec -e PATH=/bin -e MARKER=1 -- /bin/sh -c 'echo $MARKER'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().Bool("background", false, "Detach the child; print its pid and return")
	execCmd.Flags().StringArrayP("env", "e", nil, "Environment entry KEY=VALUE (repeatable; replaces the agent's environment)")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	background, _ := cmd.Flags().GetBool("background")
	env, _ := cmd.Flags().GetStringArray("env")

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if background {
		pid, err := c.ExecBackground(args, env)
		if err != nil {
			return err
		}
		fmt.Println(pid)
		return nil
	}

	res, err := c.Exec(args, env, os.Stdin, os.Stdout)
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
