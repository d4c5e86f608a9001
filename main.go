package main

import "github.com/tanq16/siesta/cmd"

func main() {
	cmd.Execute()
}
