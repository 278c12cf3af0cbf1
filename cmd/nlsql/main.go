// Command nlsql serves and queries the natural-language SQL API.
package main

import (
	"os"

	"github.com/koustreak/nlsql/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
