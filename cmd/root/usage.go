package root

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/gencommit/gencommit/pkg/cli"
	"github.com/gencommit/gencommit/pkg/usage"
	"github.com/gencommit/gencommit/pkg/userconfig"
)

type usageCmd struct {
	jsonOutput     bool
	usageFile      string
	noMinuteLimits bool

	workingDir string
	loadConfig func() (*userconfig.Config, error)
	now        func() time.Time
}

type usageReport struct {
	Path string `json:"path"`
	usage.Status
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func newUsageCmd() *cobra.Command {
	return (&usageCmd{
		workingDir: ".",
		loadConfig: userconfig.Load,
		now:        time.Now,
	}).command()
}

func (u *usageCmd) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the local request and token quota",
		Example: `  gencommit usage
  gencommit usage --json`,
		Args: cobra.NoArgs,
		RunE: u.run,
	}

	cmd.Flags().BoolVar(&u.jsonOutput, "json", false, "Print the usage as JSON")
	cmd.Flags().StringVar(&u.usageFile, "usage-file", usage.DefaultFileName, "Path of the usage file, relative to the working directory")
	cmd.Flags().BoolVar(&u.noMinuteLimits, "no-minute-limits", false, "Report per-minute limits as not enforced")

	return cmd
}

func (u *usageCmd) run(cmd *cobra.Command, _ []string) error {
	cfg, err := u.loadConfig()
	if err != nil {
		return err
	}

	limits := usage.DefaultLimits()
	limits.EnforcePerMinute = cfg.MinuteLimitsEnforced() && !u.noMinuteLimits

	now := u.now()
	tracker := usage.New(usagePath(u.workingDir, u.usageFile),
		usage.WithLimits(limits),
		usage.WithClock(func() time.Time { return now }),
	)

	status, err := tracker.Status(cmd.Context())
	if err != nil {
		cli.NewPrinter(cmd.ErrOrStderr()).PrintError(err)
		return RuntimeError{Err: err}
	}

	if u.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(usageReport{
			Path:    tracker.Path(),
			Status:  status,
			Allowed: status.Admission.Allowed,
			Reason:  status.Admission.Reason,
		})
	}

	cli.NewPrinter(cmd.OutOrStdout()).PrintStatus(tracker.Path(), status, now)
	return nil
}
