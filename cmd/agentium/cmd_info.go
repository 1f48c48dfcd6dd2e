package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the agent's banner details",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	block, err := c.DummyBlock()
	if err != nil {
		return err
	}

	fmt.Printf("os:          %s\n", c.OSName())
	fmt.Printf("dummy block: 0x%x\n", block)
	return nil
}
