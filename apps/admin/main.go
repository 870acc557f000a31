package main

import (
	"log"
	"os"

	dig_container "github.com/trezcool/gradebook/apps/api/di/dig"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/user"
)

var logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	c := dig_container.New(nil)

	code := 0
	err := c.Invoke(func(
		storage *dig_container.Storage,
		closers dig_container.Closers,
		usrSvc user.Service,
		assignmentSvc assignment.Service,
	) {
		defer func() {
			for _, closeFn := range closers {
				if err := closeFn(); err != nil {
					logger.Printf("closing resource: %v", err)
				}
			}
		}()

		cli := commandLine{
			usrSvc:  usrSvc,
			sweeper: assignmentSvc,
		}
		if storage.SQL != nil {
			cli.db = storage.SQL.DB
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		logger.Printf("\nerror: %s\n", err)
		code = 1
	}
	os.Exit(code)
}
