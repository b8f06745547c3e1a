// Command migrate ensures the shuttle's schema exists without starting the
// rest of the process, for use in a deploy step ahead of the main binary.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/comunifi/shuttle/internal/config"
	"github.com/comunifi/shuttle/internal/db"
)

func main() {
	env := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	ctx := context.Background()

	conf, err := config.New(ctx, *env)
	if err != nil {
		log.Fatal(err)
	}

	database, err := db.NewDB(ctx, conf.DBUser, conf.DBPassword, conf.DBName, conf.DBHost, conf.DBPort)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	log.Println("schema up to date")
}
