// Command tablesync manages documents in named tables and keeps a local
// reconciled index of each table in sync with the store.
package main

import (
	"os"

	"github.com/mesh-intelligence/tablesync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
