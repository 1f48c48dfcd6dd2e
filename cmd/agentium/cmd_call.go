package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <library> <symbol> [args...]",
	Short: "Resolve a symbol on the agent and call it",
	Long: `Load a library in the agent process, resolve a symbol, call it with the
given machine-word arguments, and print the machine-word return value.
Arguments accept decimal or 0x-prefixed hex. At most eleven arguments are
supported.`,
	Example: `  agentium call libc.so.6 getpid
  agentium call libc.so.6 labs 0xff`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

var dlopenCmd = &cobra.Command{
	Use:   "dlopen <library>",
	Short: "Load a library in the agent and print its handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runDlopen,
}

func init() {
	callCmd.Flags().Uint32("mode", 2, "dlopen mode flags (platform RTLD_* values)")
	dlopenCmd.Flags().Uint32("mode", 2, "dlopen mode flags (platform RTLD_* values)")
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(dlopenCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetUint32("mode")

	callArgs := make([]uint64, len(args)-2)
	for i, a := range args[2:] {
		v, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return fmt.Errorf("argument %q: %w", a, err)
		}
		callArgs[i] = v
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	handle, err := c.Dlopen(args[0], mode)
	if err != nil {
		return err
	}
	if handle == 0 {
		return fmt.Errorf("agent could not load %s", args[0])
	}
	defer c.Dlclose(handle)

	addr, err := c.Dlsym(handle, args[1])
	if err != nil {
		return err
	}
	if addr == 0 {
		return fmt.Errorf("symbol %s not found in %s", args[1], args[0])
	}

	ret, err := c.Call(addr, callArgs...)
	if err != nil {
		return err
	}
	fmt.Printf("0x%x\n", ret)
	return nil
}

func runDlopen(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetUint32("mode")

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	handle, err := c.Dlopen(args[0], mode)
	if err != nil {
		return err
	}
	if handle == 0 {
		return fmt.Errorf("agent could not load %s", args[0])
	}
	fmt.Printf("0x%x\n", handle)
	return nil
}
