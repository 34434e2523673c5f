package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/denis-rodionov/school-trainer-sub000/apps/api/echo"
	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
	emailsvc "github.com/denis-rodionov/school-trainer-sub000/services/email"
	gensvc "github.com/denis-rodionov/school-trainer-sub000/services/generation"
	logsvc "github.com/denis-rodionov/school-trainer-sub000/services/logger"
	speechsvc "github.com/denis-rodionov/school-trainer-sub000/services/speech"
	"github.com/denis-rodionov/school-trainer-sub000/storage/database"
	sqlxrepos "github.com/denis-rodionov/school-trainer-sub000/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	// set up repositories
	usrRepo := sqlxrepos.NewUserRepository(dbx)
	topicRepo := sqlxrepos.NewTopicRepository(dbx)
	subjectRepo := sqlxrepos.NewSubjectRepository(dbx)
	worksheetRepo := sqlxrepos.NewWorksheetRepository(dbx)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var generator core.TextGenerator
	var synthesizer core.SpeechSynthesizer
	if conf.Debug {
		generator = gensvc.NewDummyService()
		synthesizer = speechsvc.NewDummyService()
	} else {
		generator = gensvc.NewGeminiService(conf)
		if synthesizer, err = speechsvc.NewGoogleService(context.Background(), conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up speech synthesis: %v", err), err)
		}
	}

	usrSvc := user.NewService(usrRepo, mailSvc)
	topicSvc := topic.NewService(topicRepo)
	subjectSvc := subject.NewService(subjectRepo, worksheetRepo)
	worksheetSvc := worksheet.NewService(worksheetRepo, subjectSvc, topicSvc, generator, synthesizer, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	topic.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Grade Refresh Scheduler
	//
	// Cached grades go stale at local midnight; an early-morning pass
	// recomputes them before students log in.

	scheduler := gocron.NewScheduler(time.Local)
	if _, err = scheduler.Every(1).Day().At("04:00").Do(func() {
		n, rErr := subjectSvc.RefreshStaleGrades()
		if rErr != nil {
			logger.Error(fmt.Sprintf("refreshing stale grades: %v", rErr), rErr)
			return
		}
		logger.Info(fmt.Sprintf("refreshed %d stale grade(s)", n))
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling grade refresh: %v", err), err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			UserSvc:      usrSvc,
			TopicSvc:     topicSvc,
			SubjectSvc:   subjectSvc,
			WorksheetSvc: worksheetSvc,
			Validate:     validate,
			Translator:   translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
