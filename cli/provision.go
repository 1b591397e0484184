package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/0x6flab/namegenerator"
	sampler "github.com/absmach/sampler"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
)

const filePermission = 0o644

var (
	errFailedToRenderConfig = errors.New("failed to render config file")
	errFailedToWriteConfig  = errors.New("failed to write config file")
	errFailedToWriteEnv     = errors.New("failed to write .env file")
	errNoNodes              = errors.New("at least one node address is required")
)

// ProvisionOptions are the inputs of the provision command.
type ProvisionOptions struct {
	Dir         string
	MQTTAddress string
	Nodes       string
	BitsPerNode int
	Graph       string
}

type Result struct {
	Orchestrator sampler.OrchestratorConfig `json:"orchestrator"`
	Peripheral   sampler.PeripheralConfig   `json:"peripheral"`
	Peripherals  []string                   `json:"peripherals"`
	ConfigFile   string                     `json:"config_file"`
	EnvFile      string                     `json:"env_file"`
}

// Provision generates credentials for the orchestrator and the peripheral
// fleet and writes config.toml and .env into opts.Dir.
func Provision(opts ProvisionOptions) (Result, error) {
	nodes := splitNodes(opts.Nodes)
	if len(nodes) == 0 {
		return Result{}, errNoNodes
	}

	channelID := uuid.NewString()
	cfg := sampler.Config{
		Orchestrator: sampler.OrchestratorConfig{
			ClientID:  uuid.NewString(),
			ClientKey: uuid.NewString(),
			ChannelID: channelID,
			Nodes:     nodes,
		},
		Peripheral: sampler.PeripheralConfig{
			ClientID:  uuid.NewString(),
			ClientKey: uuid.NewString(),
			ChannelID: channelID,
		},
		Controller: sampler.ControllerConfig{
			Address:     "localhost:7071",
			BitsPerNode: opts.BitsPerNode,
			Graph:       opts.Graph,
			TempStart:   0.6,
			TempEnd:     0.05,
			Threshold:   0.02,
		},
	}
	if _, err := cfg.Orchestrator.Addresses(); err != nil {
		return Result{}, err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return Result{}, errors.Join(errFailedToRenderConfig, err)
	}

	res := Result{
		Orchestrator: cfg.Orchestrator,
		Peripheral:   cfg.Peripheral,
		Peripherals:  peripheralNames(len(nodes)),
		ConfigFile:   filepath.Join(opts.Dir, "config.toml"),
		EnvFile:      filepath.Join(opts.Dir, ".env"),
	}

	if err := os.WriteFile(res.ConfigFile, data, filePermission); err != nil {
		return Result{}, errors.Join(errFailedToWriteConfig, err)
	}

	env := fmt.Sprintf(`# Sampler Environment Configuration

# Orchestrator Configuration
ORCHESTRATOR_MQTT_ADDRESS=%s
ORCHESTRATOR_CLIENT_ID=%s
ORCHESTRATOR_CLIENT_KEY=%s
ORCHESTRATOR_CHANNEL_ID=%s
ORCHESTRATOR_CONFIG_PATH=%s

# Peripheral Configuration
PERIPHERAL_MQTT_ADDRESS=%s
PERIPHERAL_CLIENT_ID=%s
PERIPHERAL_CLIENT_KEY=%s
PERIPHERAL_CHANNEL_ID=%s
`,
		opts.MQTTAddress,
		cfg.Orchestrator.ClientID,
		cfg.Orchestrator.ClientKey,
		channelID,
		res.ConfigFile,
		opts.MQTTAddress,
		cfg.Peripheral.ClientID,
		cfg.Peripheral.ClientKey,
		channelID,
	)
	if err := os.WriteFile(res.EnvFile, []byte(env), filePermission); err != nil {
		return Result{}, errors.Join(errFailedToWriteEnv, err)
	}

	return res, nil
}

func peripheralNames(n int) []string {
	gen := namegenerator.NewGenerator()
	names := make([]string, n)
	for i := range names {
		names[i] = gen.Generate()
	}

	return names
}

func splitNodes(s string) []string {
	var nodes []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

func NewProvisionCmd() *cobra.Command {
	var (
		yes  bool
		opts = ProvisionOptions{
			Dir:         ".",
			MQTTAddress: "tcp://localhost:1883",
			Nodes:       "0x10,0x11,0x12,0x13",
			BitsPerNode: 1,
		}
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision resources",
		Long:  `Generate credentials and write config.toml and .env for the orchestrator and its peripherals.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if !yes {
				bits := strconv.Itoa(opts.BitsPerNode)
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("MQTT broker address").
							Value(&opts.MQTTAddress),
						huh.NewInput().
							Title("Node bus addresses").
							Description("Comma separated, e.g. 0x10,0x11").
							Value(&opts.Nodes).
							Validate(func(s string) error {
								if len(splitNodes(s)) == 0 {
									return errNoNodes
								}

								return nil
							}),
						huh.NewSelect[string]().
							Title("Bits per node").
							Options(huh.NewOptions("1", "2", "4", "8")...).
							Value(&bits),
						huh.NewInput().
							Title("Graph file").
							Description("Leave empty for a ring").
							Value(&opts.Graph),
					),
				)
				if err := form.Run(); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				if n, err := strconv.Atoi(bits); err == nil {
					opts.BitsPerNode = n
				}
			}

			res, err := Provision(opts)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully created "+res.ConfigFile+" and "+res.EnvFile)
			logJSONCmd(*cmd, res)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the interactive form and use flags")
	cmd.Flags().StringVar(&opts.Dir, "dir", opts.Dir, "Output directory")
	cmd.Flags().StringVar(&opts.MQTTAddress, "mqtt-address", opts.MQTTAddress, "MQTT broker address")
	cmd.Flags().StringVar(&opts.Nodes, "nodes", opts.Nodes, "Comma separated node bus addresses")
	cmd.Flags().IntVar(&opts.BitsPerNode, "bits-per-node", opts.BitsPerNode, "Bits each node contributes to a sample")
	cmd.Flags().StringVar(&opts.Graph, "graph", opts.Graph, "Graph file for the controller")

	return cmd
}
