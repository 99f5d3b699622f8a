package main

import "github.com/negproof/negproof/cmd/negproof/cmd"

func main() {
	cmd.Execute()
}
