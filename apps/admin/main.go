package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	rbLogger := logsvc.NewRollbarLogger(stdLogger, conf)
	rbLogger.Enable(!conf.Debug)
	logger = rbLogger

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	// welcome mails go out through the same provider as the API
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db.DB,
		usrSvc:     usrSvc,
		reconciler: roster.NewReconciler(usrSvc, sqlxrepos.NewBatchRepository(db), logger, conf),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	flushMails(mailSvc, conf.Server.ShutdownTimeout)
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

// flushMails waits for the mails sent in the background by the command.
func flushMails(mailSvc core.EmailService, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mailSvc.Wait(ctx); err != nil {
		logger.Error("pending emails dropped", err)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
