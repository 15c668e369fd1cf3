package main

import (
	"github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands"
	_ "github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands/admin"
	_ "github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands/dump"
	_ "github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands/migrate"
)

func main() {
	commands.Execute()
}
