// agentiumd is the agent: a long-running server that executes the binary
// command protocol for any controller that connects. It performs no
// authentication; deployments are expected to front it with a trusted
// transport.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semiotic/agentium/internal/audit"
	"github.com/semiotic/agentium/pkg/agent"
	"github.com/semiotic/agentium/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "agentiumd",
	Short: "Remote in-process agent",
	Long: `agentiumd listens for controller connections and executes spawn, dynamic
linking, raw call, and memory access commands inside its own process.`,
	Example: `  agentiumd -p 5910 -o stdout
  agentiumd -o syslog -o file:/var/log/agentiumd.log
  agentiumd --audit /var/lib/agentiumd/audit.db`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.Flags().IntP("port", "p", agent.DefaultPort, "TCP port to listen on")
	rootCmd.Flags().StringArrayP("output", "o", nil, "log sink: stdout, syslog, or file:<path> (repeatable)")
	rootCmd.Flags().String("audit", "", "record sessions and commands to this sqlite database")
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(c.UsageString())
		return err
	})

	viper.SetEnvPrefix("AGENTIUM")
	viper.AutomaticEnv()
	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("audit", rootCmd.Flags().Lookup("audit"))
}

func runServe(cmd *cobra.Command, args []string) error {
	sinks := viper.GetStringSlice("output")
	if len(sinks) == 0 {
		sinks = []string{"stdout"}
	}
	cfg, err := logging.ParseSinks(sinks)
	if err != nil {
		return err
	}
	log, teardown, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	var store *audit.Store
	if path := viper.GetString("audit"); path != "" {
		store, err = audit.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	srv := agent.New(agent.Config{
		Port:  viper.GetInt("port"),
		Log:   log,
		Audit: store,
	})
	if err := srv.Listen(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		srv.Stop()
	}()

	return srv.Serve()
}

func main() {
	// Accept -? as an alias for -h the way older controllers expect.
	for i, a := range os.Args[1:] {
		if a == "-?" {
			os.Args[i+1] = "-h"
		}
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
