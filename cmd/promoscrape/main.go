package main

import (
	"promoscrape/cmd/promoscrape/commands"
	"promoscrape/internal/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
