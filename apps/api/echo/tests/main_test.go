package tests

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	logsvc "github.com/denis-rodionov/school-trainer-sub000/services/logger"
)

var (
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.TestMode = true
	conf.Debug = false // Debug replies with raw error strings
	conf.Generation.RequestDelay = 0

	// keep generated dictation audio out of the working tree
	mediaDir, err := os.MkdirTemp("", "school-trainer-media-")
	if err != nil {
		log.Fatalf("os.MkdirTemp(): %v", err)
	}
	conf.MediaRoot = mediaDir

	rbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile), conf)
	rbLogger.Enable(false)
	logger = rbLogger

	validate = validator.New()
	translator = newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	topic.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	code := m.Run()

	_ = os.RemoveAll(mediaDir)
	os.Exit(code)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
