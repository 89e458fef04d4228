// cobble init [name], cobble new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/cobble/internal/builder"
	"github.com/qobs-build/cobble/internal/msg"
	"github.com/qobs-build/cobble/internal/toolchain"
	"github.com/spf13/cobra"
)

const msvcConfig = `[project]
name = "%s"

[toolchain]
flavor = "msvc"

[flags]
standard = ["/std:c++20", "/EHsc"]
encoding = ["/utf-8"]
include = ["."]
libdirs = ["."]
libs = ["user32.lib", "gdi32.lib"]
link = ["/SUBSYSTEM:CONSOLE"]

[sources]
# library sources are compiled by ` + "`cobble all`" + ` and reused by ` + "`cobble main`" + `
library = []
application = ["main.cpp"]

[profile.debug]
cflags = ["/MDd", "/Od", "/Zi"]

[profile.release]
cflags = ["/MD", "/O2"]

[fetch]
`

const gnuConfig = `[project]
name = "%s"

[toolchain]
flavor = "gnu"

[flags]
standard = ["-std=c++20"]
encoding = ["-finput-charset=UTF-8"]
include = ["."]
libdirs = []
libs = []
link = []

[sources]
# library sources are compiled by ` + "`cobble all`" + ` and reused by ` + "`cobble main`" + `
library = []
application = ["main.cpp"]

[profile.debug]
cflags = ["-O0", "-g"]

[profile.release]
cflags = ["-O2"]

[fetch]
`

const mainSource = `#include <iostream>

int main() {
    std::cout << "Hello, World!" << std::endl;
    return 0;
}
`

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Fprintf(msg.Output, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "cobble"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// configTemplate returns the starter Cobble.toml for a flavor
func configTemplate(flavor, name string) string {
	if flavor == flavorAuto {
		flavor = toolchain.FlavorGNU
		if runtime.GOOS == "windows" {
			flavor = toolchain.FlavorMSVC
		}
	}
	if flavor == toolchain.FlavorMSVC {
		return fmt.Sprintf(msvcConfig, name)
	}
	return fmt.Sprintf(gnuConfig, name)
}

// initIn initializes a project in an existing directory
func initIn(dir, name, flavor string) {
	writefile(configTemplate(flavor, name), dir, builder.ConfigFilename)
	writefile(mainSource, dir, "main.cpp")
	writefile(`.cobble/
*.obj
*.o
*.exe
*.pdb
*.ilk
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Fprintf(msg.Output, "You can now do %s to build and run, or %s to rebuild only the application.\n",
		color.HiCyanString(programName+" -C "+dir+" all"), color.HiCyanString(programName+" -C "+dir+" main"))
}

var initToolchain EnumValue = NewEnumValue(flavorAuto, map[string]string{
	flavorAuto:           "Platform default",
	toolchain.FlavorMSVC: "cl.exe flag syntax",
	toolchain.FlavorGNU:  "gcc/clang flag syntax",
})

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], initToolchain.Value())
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), initToolchain.Value())
	},
}

func init() {
	for _, c := range []*cobra.Command{initCmd, newCmd} {
		rootCmd.AddCommand(c)
		c.Flags().VarP(&initToolchain, "toolchain", "t", "Toolchain flavor, one of "+initToolchain.HelpString())
		c.RegisterFlagCompletionFunc("toolchain", initToolchain.CompletionFunc())
	}
}
