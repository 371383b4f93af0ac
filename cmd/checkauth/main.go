// checkauth verifies source credentials through the stock MySQL driver. Handy
// for telling apart a wrong password from a protocol problem when the
// connector refuses to come up.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	dsn := flag.String("dsn", "repl:secret@tcp(127.0.0.1:3306)/", "Source DSN to verify")
	flag.Parse()

	db, err := sql.Open("mysql", *dsn)
	if err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ping failed: %v", err)
	}

	var version string
	if err := db.QueryRow("SELECT VERSION()").Scan(&version); err != nil {
		log.Fatalf("Version query failed: %v", err)
	}
	fmt.Printf("Credentials OK, server version %s\n", version)
}
