package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rigup-sh/rigup/internal/actions"
	"github.com/rigup-sh/rigup/internal/ageutil"
	"github.com/rigup-sh/rigup/internal/audit"
	"github.com/rigup-sh/rigup/internal/backup"
	"github.com/rigup-sh/rigup/internal/color"
	"github.com/rigup-sh/rigup/internal/executor"
	"github.com/rigup-sh/rigup/internal/manifest"
	"github.com/rigup-sh/rigup/internal/plan"
	"github.com/rigup-sh/rigup/internal/probe"
	"github.com/rigup-sh/rigup/internal/remote"
	"github.com/rigup-sh/rigup/internal/report"
)

// defaultManifest is the manifest picked up from the working directory when
// no --manifest flag is given.
const defaultManifest = "rigup.yaml"

var (
	manifestRef string
	dryRun      bool
	verbose     bool
	assumeYes   bool
	strict      bool
	noBackup    bool
)

func main() {
	color.Init()
	root := buildRoot()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "rigup",
		Short: "A declarative, idempotent workstation bootstrapper",
		Long: `rigup reads a YAML manifest describing the machine you want (packages,
users, dotfiles, SSH keys), probes what is already there, and applies only
what is missing. Re-running it is always safe.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&manifestRef, "manifest", "m", "", "manifest path or URL (default: rigup.yaml, else the bundled starter)")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would change without executing anything")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show skipped actions and extra output")
	root.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "apply without asking for confirmation")
	root.PersistentFlags().BoolVar(&strict, "strict", false, "exit non-zero when any action fails")
	root.PersistentFlags().BoolVar(&noBackup, "no-backup", false, "do not keep copies of overwritten files")

	root.AddCommand(
		applyCmd(),
		planCmd(),
		probeCmd(),
		initCmd(),
		logCmd(),
		encryptCmd(),
		decryptCmd(),
	)

	return root
}

// loadManifest resolves the manifest to run: the --manifest flag (a path or
// an http(s) URL), a rigup.yaml in the working directory, or the bundled
// starter.
func loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	if manifestRef != "" {
		if remote.IsURL(manifestRef) {
			return remote.FetchManifest(ctx, manifestRef)
		}
		m, err := manifest.Load(manifestRef)
		if err != nil {
			return nil, fmt.Errorf("load manifest %q: %w", manifestRef, err)
		}
		return m, nil
	}
	if _, err := os.Stat(defaultManifest); err == nil {
		m, err := manifest.Load(defaultManifest)
		if err != nil {
			return nil, fmt.Errorf("load manifest %q: %w", defaultManifest, err)
		}
		return m, nil
	}
	return manifest.Default()
}

// buildPlan probes the machine and plans the run. Both failure modes are
// fatal: nothing has executed yet.
func buildPlan(ctx context.Context) (*manifest.Manifest, []actions.Action, error) {
	pr, err := probe.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := loadManifest(ctx)
	if err != nil {
		return nil, nil, err
	}
	acts, err := plan.Build(m, pr)
	if err != nil {
		return nil, nil, err
	}
	return m, acts, nil
}

// --- apply -------------------------------------------------------------------

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Probe the machine and apply the manifest (the default command)",
		Example: `  rigup apply
  rigup apply --dry-run
  rigup apply -m dotfiles/rigup.yaml
  rigup apply -m https://example.com/rigup.yaml -y`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd)
		},
	}
}

func runApply(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	m, acts, err := buildPlan(ctx)
	if err != nil {
		return err
	}
	if len(acts) == 0 {
		fmt.Fprintln(out, "nothing to do")
		return nil
	}

	if !assumeYes && !dryRun && isTerminal(os.Stdin) {
		ok, err := confirmPlan(len(acts))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted; nothing applied")
		}
	}

	e := executor.New(dryRun, verbose)
	e.Out = out
	if !noBackup && !dryRun {
		if root, err := backup.DefaultRoot(); err == nil {
			e.Backup = backup.New(root)
		}
	}

	label := m.Name
	if label == "" {
		label = "manifest"
	}
	if dryRun {
		fmt.Fprintf(out, "==> %s: %d action(s) (dry-run)\n", label, len(acts))
	} else {
		fmt.Fprintf(out, "==> %s: %d action(s)\n", label, len(acts))
	}

	results, runErr := e.Run(ctx, acts)

	summary := report.Summarize(results)
	summary.Render(out)

	if runErr != nil {
		return runErr
	}
	if strict && summary.Failed > 0 {
		return fmt.Errorf("%d action(s) failed", summary.Failed)
	}
	return nil
}

// --- plan --------------------------------------------------------------------

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the ordered actions a run would execute, without executing",
		Example: `  rigup plan
  rigup plan -m https://example.com/rigup.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			_, acts, err := buildPlan(ctx)
			if err != nil {
				return err
			}
			if len(acts) == 0 {
				fmt.Fprintln(out, "nothing to do")
				return nil
			}

			for i, a := range acts {
				state := fmt.Sprintf("%-11s", "would apply")
				if ok, err := a.Satisfied(ctx); err == nil && ok {
					state = color.Dim(fmt.Sprintf("%-11s", "satisfied"))
				} else {
					state = color.Cyan(state)
				}
				fmt.Fprintf(out, "%3d. %s  %s\n", i+1, state, a.Describe())
			}
			return nil
		},
	}
}

// --- probe -------------------------------------------------------------------

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print what rigup detects about this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pr, err := probe.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "family:   %s\n", pr.Family)
			fmt.Fprintf(out, "arch:     %s\n", pr.Arch)
			fmt.Fprintf(out, "hostname: %s\n", pr.Hostname)
			fmt.Fprintf(out, "user:     %s (uid %d)\n", pr.User, pr.UID)
			fmt.Fprintf(out, "home:     %s\n", pr.Home)
			switch {
			case len(pr.Managers) > 1:
				fmt.Fprintf(out, "manager:  %s (also: %s)\n", pr.Manager, strings.Join(pr.Managers[1:], ", "))
			case pr.Manager != "":
				fmt.Fprintf(out, "manager:  %s\n", pr.Manager)
			default:
				fmt.Fprintf(out, "manager:  %s\n", color.Yellow("none found"))
			}
			fmt.Fprintf(out, "tags:     %s\n", strings.Join(pr.Tags, ", "))
			if len(pr.Keys) > 0 {
				fmt.Fprintln(out, "ssh keys:")
				for _, k := range pr.Keys {
					fmt.Fprintf(out, "  %s  %s (%s)\n", k.Fingerprint, filepath.Base(k.Path), k.Type)
				}
			}
			return nil
		},
	}
}

// --- init --------------------------------------------------------------------

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter rigup.yaml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(defaultManifest); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", defaultManifest)
			}
			if err := os.WriteFile(defaultManifest, manifest.DefaultYAML(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", defaultManifest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", defaultManifest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing manifest")
	return cmd
}

// --- log ---------------------------------------------------------------------

func logCmd() *cobra.Command {
	var kindFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the history of executed actions",
		Example: `  rigup log
  rigup log --kind package
  rigup log --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := audit.Read(kindFilter, limit)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "(no log entries)")
				return nil
			}

			fmt.Fprintln(out, color.Bold(fmt.Sprintf("%-20s  %-10s  %-11s  %s",
				"TIME", "KIND", "OUTCOME", "ACTION")))
			fmt.Fprintln(out, color.Dim(repeatStr("-", 90)))
			for _, e := range entries {
				ts := e.Time.Local().Format(time.DateTime)
				outcome := e.Outcome
				if e.Reason != "" {
					outcome += " (" + e.Reason + ")"
				}
				outcomePadded := fmt.Sprintf("%-11s", outcome)
				switch e.Outcome {
				case "applied":
					outcomePadded = color.Green(outcomePadded)
				case "failed":
					outcomePadded = color.BoldRed(outcomePadded)
				case "skipped":
					outcomePadded = color.Dim(outcomePadded)
				}
				fmt.Fprintf(out, "%-20s  %-10s  %s  %s\n", ts, e.Kind, outcomePadded, e.Action)
			}
			fmt.Fprintf(out, "\nlog: %s\n", audit.LogPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFilter, "kind", "", "filter by action kind (package, user, file, ...)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to show")
	return cmd
}

// --- encrypt / decrypt -------------------------------------------------------

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <file>",
		Short: "Encrypt a dotfile with the configured age key (writes <file>.age)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := ageutil.SourcePath(src)
			if dst == src {
				return fmt.Errorf("%s already ends in .age", src)
			}
			if err := ageutil.FromEnv().EncryptFile(src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted %s -> %s\n", src, dst)
			return nil
		},
	}
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <file.age>",
		Short: "Decrypt an age-encrypted dotfile (writes without the .age extension)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := strings.TrimSuffix(src, ".age")
			if dst == src {
				return fmt.Errorf("%s does not end in .age", src)
			}
			if err := ageutil.FromEnv().DecryptFile(src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "decrypted %s -> %s\n", src, dst)
			return nil
		},
	}
}

// --- helpers -----------------------------------------------------------------

// confirmPlan asks the operator to approve executing n actions.
func confirmPlan(n int) (bool, error) {
	confirm := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Apply %d action(s)?", n)).
			Affirmative("Apply").
			Negative("Cancel").
			Value(&confirm),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirm, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// repeatStr returns s repeated n times.
func repeatStr(s string, n int) string {
	b := make([]byte, n*len(s))
	for i := range b {
		b[i] = s[i%len(s)]
	}
	return string(b)
}
