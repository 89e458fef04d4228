// cobble [target] [-- program args]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/qobs-build/cobble/internal/builder"
	"github.com/qobs-build/cobble/internal/msg"
	"github.com/qobs-build/cobble/internal/toolchain"
	"github.com/spf13/cobra"
)

const flavorAuto = "auto"

var (
	flagDir           string
	flagProfile       string
	flagJobs          int
	flagPropagateExit bool
	flagToolchain     EnumValue = NewEnumValue(flavorAuto, map[string]string{
		flavorAuto:           "Use [toolchain] flavor, or the platform default",
		toolchain.FlavorMSVC: "cl.exe flag syntax",
		toolchain.FlavorGNU:  "gcc/clang flag syntax",
	})
)

// splitArgs separates the target name from the arguments meant for the program
func splitArgs(cmd *cobra.Command, args []string) (target string, runArgs []string) {
	before := args
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		before, runArgs = args[:dash], args[dash:]
	}
	if len(before) > 0 {
		target = before[0]
	}
	return target, runArgs
}

func checkArgs(cmd *cobra.Command, args []string) error {
	before := len(args)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		before = dash
	}
	if before > 1 {
		return fmt.Errorf("accepts at most one target, received %d", before)
	}
	return nil
}

func doTarget(cmd *cobra.Command, args []string) {
	name, runArgs := splitArgs(cmd, args)
	target, err := builder.ParseTarget(name)
	if err != nil {
		msg.Fatal("%v", err)
	}

	opts := builder.Options{
		Profile: flagProfile,
		Jobs:    flagJobs,
		RunArgs: runArgs,
	}
	if v := flagToolchain.Value(); v != flavorAuto {
		opts.Flavor = v
	}

	if target == builder.TargetClean {
		if _, err := builder.CleanInDirectory(flagDir, opts); err != nil {
			msg.Fatal("%v", err)
		}
		return
	}

	b, err := builder.NewBuilderInDirectory(flagDir, opts)
	if err != nil {
		msg.Fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status, err := b.Dispatch(ctx, target)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if flagPropagateExit && status != 0 {
		stop()
		os.Exit(status)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cobble [target] [-- program args]",
	Short: "Compile, link and run a native C/C++ project",
	Long: `Compile, link and run a native C/C++ project described by Cobble.toml.

Targets:
  all     compile library and application sources, link, run
  main    reuse library objects from the last full build, compile application sources, link, run
  clean   remove object files, executables and debug files
  fetch   clone missing library sources listed in [fetch]
  run     run the last linked executable (default)`,
	Args:      checkArgs,
	ValidArgs: builder.TargetNames(),
	Run:       doTarget,
}

func init() {
	rootCmd.Flags().StringVarP(&flagDir, "dir", "C", ".", "Project directory")
	rootCmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Build with the given profile")
	rootCmd.Flags().IntVarP(&flagJobs, "jobs", "j", 1, "Maximum concurrent compiles within a source group")
	rootCmd.Flags().BoolVar(&flagPropagateExit, "propagate-exit", false, "Exit with the status of the launched program")
	rootCmd.Flags().VarP(&flagToolchain, "toolchain", "t", "Toolchain flavor, one of "+flagToolchain.HelpString())
	rootCmd.RegisterFlagCompletionFunc("toolchain", flagToolchain.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
