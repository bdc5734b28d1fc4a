package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/sarchlab/kmem/monitoring"
	"github.com/spf13/cobra"
)

var (
	serveConfig config
	servePort   int
	serveOpen   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the address space of a process and serve it over HTTP.",
	Long: `Build the address space of a process, then serve the monitoring ` +
		`API until interrupted. The address space is served even if ` +
		`establishing it failed, so the failure can be inspected.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		s := setUp(serveConfig)

		err := s.establish()
		if err != nil {
			fmt.Fprintf(os.Stderr, "establish failed: %s (%v)\n",
				s.process.Errno, err)
		}

		m := monitoring.NewMonitor().WithPortNumber(servePort)
		m.RegisterAddressSpace(s.process.Memory)
		m.RegisterMMU(s.mmu)
		m.RegisterEventCounter(s.counter)

		port := m.StartServer()

		if serveOpen {
			url := fmt.Sprintf("http://localhost:%d/api/list_address_spaces", port)

			err := browser.OpenURL(url)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
			}
		}

		waitForInterrupt()
		s.flush()
	},
}

func registerServeCmd() {
	rootCmd.AddCommand(serveCmd)
	registerProcessFlags(serveCmd, &serveConfig)

	serveCmd.Flags().IntVar(&servePort, "port",
		int(envUint(envPort, 0)),
		"Port of the monitoring server, 0 picks a random one")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false,
		"Open the monitoring API in a browser")
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
