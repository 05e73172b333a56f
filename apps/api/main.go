package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/apps/api/echo"
	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
	"github.com/JoinupRosario/evaluacionesUAOback/services/email"
	"github.com/JoinupRosario/evaluacionesUAOback/services/logger"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/database"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/document/mongodb"
)

const shutdownTimeout = 20 * time.Second

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	if err != nil {
		std.Fatalf("loading config: %+v", err)
	}

	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	if err := run(conf, std, logger); err != nil {
		logger.Fatal("api server error", err)
	}
}

func run(conf *core.Config, std *log.Logger, logger core.Logger) error {
	// relational academic records store
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// document store
	docDB, err := mongodb.Open(conf.DocStore)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err = mongodb.EnsureIndexes(ctx, docDB); err != nil {
		cancel()
		return err
	}
	cancel()

	// services
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

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address,
		EvaluationSvc:  evalSvc,
		SurveySvc:      surveySvc,
		Logger:         logger,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- app.Start() }()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		std.Printf("shutdown started: %v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			return err
		}
		std.Println("shutdown complete")
	}
	return nil
}
