package main

import (
	"Chroma/cmd"
)

func main() {
	cmd.Execute()
}
