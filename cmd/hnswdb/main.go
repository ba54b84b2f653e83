package main

import (
	"os"

	"github.com/marekgalovic/hnswdb/cmd/hnswdb/commands"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := commands.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
