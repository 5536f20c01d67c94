package cmd

import (
	"fmt"
	"io"
)

const banner = `
  _            _    _
 | | ___   ___| | _| |__   _____  __
 | |/ _ \ / __| |/ / '_ \ / _ \ \/ /
 | | (_) | (__|   <| |_) | (_) >  <
 |_|\___/ \___|_|\_\_.__/ \___/_/\_\
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m\n", banner)
	fmt.Fprintf(w, "\x1b[32m  Local Credential Vault - Version %s\x1b[0m\n\n", Version)
}
