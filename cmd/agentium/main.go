// agentium is the controller CLI: it drives a remote agent over one TCP
// session per invocation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semiotic/agentium/pkg/agent"
	"github.com/semiotic/agentium/pkg/client"
)

var rootCmd = &cobra.Command{
	Use:          "agentium",
	Short:        "Controller for a remote agent",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("addr", "a", fmt.Sprintf("localhost:%d", agent.DefaultPort),
		"agent address (host:port)")
}

// dial connects using the persistent --addr flag.
func dial(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	return client.Dial(addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
