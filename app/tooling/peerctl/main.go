// This program lets an operator inspect and drive the peers in a directory.
package main

import "github.com/ardanlabs/peerledger/app/tooling/peerctl/cmd"

func main() {
	cmd.Execute()
}
