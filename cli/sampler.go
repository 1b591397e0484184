package cli

import (
	"github.com/absmach/sampler/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	DefTLSVerification        = false
	DefOrchestratorURL        = "http://localhost:7070"
	defOffset          uint64 = 0
	defLimit           uint64 = 10
)

var psdk sdk.SDK

func SetSDK(s sdk.SDK) {
	psdk = s
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Orchestrator status",
		Long:  `Show the current round, parameters, batch and subsystem state.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := psdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, st)
		},
	}
}

func NewHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Ratio history",
		Long:  `Show the recent active-node ratio history, oldest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			h, err := psdk.History()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, h)
		},
	}
}

func NewNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Observation table",
		Long:  `Show the last observation of every peripheral node.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			nodes, err := psdk.Nodes()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, nodes)
		},
	}
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "Recorded rounds",
		Long: `List recorded rounds, newest first.

Examples:
  sampler-cli rounds --offset 0 --limit 20`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := psdk.Rounds(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.Flags().Uint64VarP(&defOffset, "offset", "o", defOffset, "Offset")
	cmd.Flags().Uint64VarP(&defLimit, "limit", "l", defLimit, "Limit")

	return cmd
}

func NewParamsCmd() *cobra.Command {
	var (
		noise    float64
		bias     int
		coupling int
		mode     int
	)

	cmd := &cobra.Command{
		Use:   "params [set]",
		Short: "Sampling parameters",
		Long:  `View or update the sampling parameters shared by every node.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View parameters",
		Long:  `View the current sampling parameters.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := psdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, st.Params)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set parameters",
		Long: `Set sampling parameters. Flags that are not given keep their current value.

Examples:
  sampler-cli params set --noise 0.35 --coupling 64`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			var req sdk.ParamsRequest
			if cmd.Flags().Changed("noise") {
				req.Noise = &noise
			}
			if cmd.Flags().Changed("bias") {
				req.Bias = &bias
			}
			if cmd.Flags().Changed("coupling") {
				req.Coupling = &coupling
			}
			if cmd.Flags().Changed("mode") {
				req.Mode = &mode
			}
			if req == (sdk.ParamsRequest{}) {
				logUsageCmd(*cmd, cmd.Use+" --noise|--bias|--coupling|--mode")

				return
			}

			p, err := psdk.SetParams(req)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	setCmd.Flags().Float64VarP(&noise, "noise", "n", 0, "Noise fraction in [0,1]")
	setCmd.Flags().IntVarP(&bias, "bias", "b", 0, "Bias in [-127,127]")
	setCmd.Flags().IntVarP(&coupling, "coupling", "k", 0, "Coupling in [0,255]")
	setCmd.Flags().IntVarP(&mode, "mode", "m", 0, "Node mode in [0,255]")

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(setCmd)

	return cmd
}

func NewBatchCmd() *cobra.Command {
	var req sdk.BatchRequest

	cmd := &cobra.Command{
		Use:   "batch [start|stop]",
		Short: "Sample batches",
		Long:  `Start or stop a sample batch.`,
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start batch",
		Long: `Arm a sample batch. An active batch is replaced.

Examples:
  sampler-cli batch start --count 500 --stride 2 --burn-in 10`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			b, err := psdk.StartBatch(req)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, b)
		},
	}

	startCmd.Flags().IntVarP(&req.Count, "count", "c", 0, "Samples to emit (default 100)")
	startCmd.Flags().IntVarP(&req.Stride, "stride", "s", 0, "Emit every n-th round (default 1)")
	startCmd.Flags().IntVarP(&req.BurnIn, "burn-in", "b", 0, "Rounds to skip before the first sample")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop batch",
		Long:  `Stop the active batch after the round in progress.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := psdk.StopBatch(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(startCmd)
	cmd.AddCommand(stopCmd)

	return cmd
}
