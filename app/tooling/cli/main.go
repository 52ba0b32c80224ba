// This program provides operator access to a running node and offline
// tooling for chain files.
package main

import "github.com/ardanlabs/powchain/app/tooling/cli/cmd"

func main() {
	cmd.Execute()
}
