package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/trezcool/mitihani/apps/api/echo"
	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	"github.com/trezcool/mitihani/core/user"
	emailsvc "github.com/trezcool/mitihani/services/email"
	logsvc "github.com/trezcool/mitihani/services/logger"
	"github.com/trezcool/mitihani/storage/database"
	mongorepos "github.com/trezcool/mitihani/storage/database/mongo"
	objstore "github.com/trezcool/mitihani/storage/object"
)

func main() {
	// set up logger
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = db.Client().Disconnect(ctx); err != nil {
			logger.Error(fmt.Sprintf("disconnecting database: %v", err), err)
		}
	}()

	// set up object storage
	files, err := objstore.NewMinioStore(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	if err = files.EnsureBucket(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("ensuring storage bucket: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(mongorepos.NewUserRepository(db), mailSvc)
	examSvc := exam.NewService(mongorepos.NewExamRepository(db), files, logger)
	ratingSvc := rating.NewService(mongorepos.NewRatingRepository(db))

	// start API server
	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	app := echoapi.NewServer(
		core.Conf.Server.Addr,
		shutdown,
		&echoapi.Deps{
			UserSvc:   usrSvc,
			ExamSvc:   examSvc,
			RatingSvc: ratingSvc,
			MailSvc:   mailSvc,
			Logger:    logger,
		},
	)
	go app.Start()

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}
