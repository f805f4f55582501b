// Command synergyctl administers SynergyOS roles, permissions and sessions.
package main

import (
	"os"

	"github.com/synergyos/synergyos/cmd/synergyctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
