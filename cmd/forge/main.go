package main

import (
	"github.com/forgebuild/forge/cmd/forge/internal"
)

func main() {
	internal.Execute()
}
