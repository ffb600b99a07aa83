package main

import "github.com/kanjialive/kanjialive-mcp-server/cmd/kanjialive-mcp/cmd"

func main() {
	cmd.Execute()
}
