package main

import "github.com/codetrail/codetrail/internal/cmd"

func main() {
	cmd.Execute()
}
