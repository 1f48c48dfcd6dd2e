package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var peekCmd = &cobra.Command{
	Use:     "peek <address> <size>",
	Short:   "Read agent memory and hex-dump it",
	Example: "  agentium peek 0x7f0000001000 64",
	Args:    cobra.ExactArgs(2),
	RunE:    runPeek,
}

var pokeCmd = &cobra.Command{
	Use:     "poke <address> <hexbytes>",
	Short:   "Write bytes into agent memory",
	Example: "  agentium poke 0x7f0000001000 deadbeef",
	Args:    cobra.ExactArgs(2),
	RunE:    runPoke,
}

func init() {
	rootCmd.AddCommand(peekCmd)
	rootCmd.AddCommand(pokeCmd)
}

func runPeek(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("address %q: %w", args[0], err)
	}
	size, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("size %q: %w", args[1], err)
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := c.Peek(addr, size)
	if err != nil {
		return err
	}

	dumper := hex.Dumper(os.Stdout)
	dumper.Write(data)
	return dumper.Close()
}

func runPoke(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("address %q: %w", args[0], err)
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("payload %q: %w", args[1], err)
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Poke(addr, data)
}
