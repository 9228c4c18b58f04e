package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ec2launch/internal/launch"
	"github.com/yairfalse/ec2launch/internal/params"
	"github.com/yairfalse/ec2launch/internal/plugin"
	"github.com/yairfalse/ec2launch/internal/policy"
)

var version = "0.1.0"

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
	exitProvider   = 3
	exitInvariant  = 4
	exitPolicy     = 5
)

// options holds flag values. Launch inputs (-g, -a, -k, -s) are read
// through params.FromFlags instead.
type options struct {
	configPath   string
	region       string
	profile      string
	endpoint     string
	provider     string
	instanceType string
	pollInterval time.Duration
	callTimeout  time.Duration
	waitTimeout  time.Duration
	policies     []string
	output       string
	dryRun       bool
	logLevel     string
	debug        bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ec2launch -g sg-... -a ami-... -k KEYPAIR [-s subnet-...]",
		Short: "Launch an EC2 instance and wait until it leaves pending",
		Long: `ec2launch - launch and confirm

Launches one instance from an AMI into a security group (optionally into a
subnet with a public IP), then polls until the instance leaves the pending
state and prints its VPC id, state, public IP, public DNS and key pair.

Press any key (interactive terminals), send SIGINT, or pass --wait-timeout
to stop waiting early; the last observed state is printed either way.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunch(cmd, opts)
		},
	}
	cmd.SetVersionTemplate(`ec2launch {{.Version}}
`)

	f := cmd.Flags()
	f.StringP(params.KeyGroupID, "g", "", "security group id (sg-...)")
	f.StringP(params.KeyAMIID, "a", "", "image id (ami-...)")
	f.StringP(params.KeyKeyPairName, "k", "", "key pair name")
	f.StringP(params.KeySubnetID, "s", "", "subnet id (subnet-...); launches with a public IP")
	f.StringVar(&opts.instanceType, "instance-type", "", "instance type (default t2.micro)")
	f.StringArrayVar(&opts.policies, "policy", nil, "rego policy file or directory (repeatable)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the launch request without submitting it")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML config file")
	pf.StringVar(&opts.region, "region", "", "AWS region (default from the SDK)")
	pf.StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	pf.StringVar(&opts.endpoint, "endpoint", "", "custom EC2 endpoint, e.g. LocalStack")
	pf.StringVar(&opts.provider, "provider", "", "compute provider: aws or sim")
	pf.DurationVar(&opts.pollInterval, "poll-interval", 0, "delay between state checks (default 2s)")
	pf.DurationVar(&opts.callTimeout, "call-timeout", 0, "timeout per provider call (default 30s)")
	pf.DurationVar(&opts.waitTimeout, "wait-timeout", 0, "stop waiting after this long (0 waits indefinitely)")
	pf.StringVarP(&opts.output, "output", "o", "", "report format: table, json or yaml")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (default info)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newWaitCmd(opts))
	return cmd
}

// Execute runs the root command and exits with a code describing the
// failure class.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		reportError(stderr, err)
	}
	return exitCode(err)
}

func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var verr *params.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, verr.Guidance())
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var (
		verr *params.ValidationError
		derr *policy.DeniedError
	)
	switch {
	case errors.As(err, &verr):
		return exitValidation
	case errors.As(err, &derr):
		return exitPolicy
	case launch.IsInvariantError(err):
		return exitInvariant
	case plugin.IsProviderError(err):
		return exitProvider
	default:
		return exitError
	}
}
