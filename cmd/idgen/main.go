// Command idgen manages id sequences from the shell: creating and seeding them, drawing ids,
// and reseeding after imports.
package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	a := &app{}
	if err := a.execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
