package main

import (
	"log"

	"github.com/absmach/sampler/cli"
	"github.com/absmach/sampler/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	orchestratorURL := cli.DefOrchestratorURL
	tlsVerification := cli.DefTLSVerification

	rootCmd := &cobra.Command{
		Use:   "sampler-cli",
		Short: "Sampler CLI",
		Long:  `Sampler CLI is a command line interface for interacting with the sampler orchestrator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				OrchestratorURL: orchestratorURL,
				TLSVerification: tlsVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	rootCmd.AddCommand(cli.NewStatusCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
	rootCmd.AddCommand(cli.NewNodesCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewParamsCmd())
	rootCmd.AddCommand(cli.NewBatchCmd())
	rootCmd.AddCommand(cli.NewProvisionCmd())

	rootCmd.PersistentFlags().StringVarP(&orchestratorURL, "orchestrator-url", "u", orchestratorURL, "Orchestrator HTTP API URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", tlsVerification, "Verify TLS certificates")
	rootCmd.PersistentFlags().BoolVarP(&cli.RawOutput, "raw", "r", cli.RawOutput, "Print raw JSON")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
