package main

import "github.com/cyberinferno/netlab/cmd"

func main() {
	cmd.Execute()
}
