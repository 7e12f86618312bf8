package main

import "tlbtrace/cli/cmd"

func main() {
	cmd.Execute()
}
