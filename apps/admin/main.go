package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
	"github.com/JoinupRosario/evaluacionesUAOback/services/email"
	"github.com/JoinupRosario/evaluacionesUAOback/services/logger"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/database"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/document/mongodb"
)

var std *log.Logger

func main() {
	defer os.Exit(0)

	std = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(err)

	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	docDB, err := mongodb.Open(conf.DocStore)
	errAndDie(err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	errAndDie(mongodb.EnsureIndexes(ctx, docDB))
	cancel()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	surveySvc := survey.NewService(mongodb.NewSurveyRepository(docDB), logger)
	evalSvc := evaluation.NewService(
		mongodb.NewEvaluationRepository(docDB),
		database.NewAcademicRepository(db),
		surveySvc,
		mailSvc,
		logger,
	)

	// start CLI
	cli := commandLine{evalSvc: evalSvc}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		std.Fatal(err)
	}
}
