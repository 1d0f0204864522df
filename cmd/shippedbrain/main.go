package main

import "github.com/oshokin/shippedbrain/cmd/shippedbrain/cmd"

func main() {
	cmd.Execute()
}
