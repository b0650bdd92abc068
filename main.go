package main

import "github.com/renewpackages/renewapi/cmd"

func main() {
	cmd.Execute()
}
