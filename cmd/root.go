package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
)

// app carries what every subcommand needs. Flags are bound into v so
// each one can also be set through an XSSLAB_<FLAG> environment variable.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the command tree around cfg and log.
func NewRootCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	a := &app{cfg: cfg, log: log, v: viper.New()}
	a.v.SetEnvPrefix("XSSLAB")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "xsslab",
		Short: "Hands-on toolkit for learning Cross-Site Scripting",
		Long: `xsslab is a teaching toolkit for Cross-Site Scripting (XSS).

Features:
- Payload mutation engine for studying filter bypasses
- DOM sink/source scanner with remediation advice
- Content-Security-Policy analyzer, payload tester and builder
- JSON API for the fuzzer, scanner and CSP tools
- Learning progress tracking`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./configs/xsslab.yaml or $HOME/.xsslab.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("output", "", "output directory for generated files")

	rootCmd.AddCommand(
		newMutateCmd(a),
		newScanCmd(a),
		newCSPCmd(a),
		newServeCmd(a),
		newProgressCmd(a),
		newReportCmd(a),
		newCompletionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI.
func Execute(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	return NewRootCmd(cfg, log).ExecuteContext(ctx)
}

// setup reloads the config when --config is given and applies the global
// flags over it.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if a.cfgFile != "" {
		loaded, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = loaded
	}

	relog := false
	if lvl := a.v.GetString("log-level"); lvl != "" {
		a.cfg.LogLevel = lvl
		relog = true
	}
	if format := a.v.GetString("log-format"); format != "" {
		a.cfg.LogFormat = format
		relog = true
	}
	if out := a.v.GetString("output"); out != "" {
		a.cfg.OutputDir = out
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if relog || a.cfgFile != "" {
		a.log = logger.NewWithWriter(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
	}
	return nil
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
$ source <(xsslab completion bash)

Zsh:
$ source <(xsslab completion zsh)

Fish:
$ xsslab completion fish | source

PowerShell:
PS> xsslab completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletion(out)
			}
		},
	}
}
