package main

import (
	// Embedded zone database so schedule.timezone resolves in minimal containers
	_ "time/tzdata"

	"github.com/pfrederiksen/avl-events/internal/cli"
)

func main() {
	cli.Execute()
}
