package main

import "tidytabs/cmd"

func main() {
	cmd.Execute()
}
