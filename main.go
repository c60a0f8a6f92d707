package main

import "github.com/grantd/grantd/cmd"

func main() {
	cmd.Execute()
}
