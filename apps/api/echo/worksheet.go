package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
)

type worksheetApi struct {
	svc      worksheet.Service
	validate *validator.Validate
}

func registerWorksheetAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc worksheet.Service, validate *validator.Validate) {
	api := worksheetApi{
		svc:      svc,
		validate: validate,
	}

	wg := g.Group("/worksheets", jwt)
	wg.POST("", api.generate)
	wg.GET("", api.query)
	wg.GET("/pending", api.getPending)
	wg.POST("/regenerate", api.regenerate)
	wg.GET("/:id", api.retrieve)
	wg.GET("/:id/review", api.review, trainerMiddleware())
	wg.POST("/:id/draft", api.saveDraft)
	wg.POST("/:id/submit", api.submit)
}

// Handlers

func (api *worksheetApi) generate(ctx echo.Context) error {
	data, studentID, err := api.bindGenerateRequest(ctx)
	if err != nil {
		return err
	}

	ws, err := api.svc.Generate(ctx.Request().Context(), studentID, data.Subject)
	if err != nil {
		return errors.Wrap(err, "generating worksheet")
	}
	return ctx.JSON(http.StatusCreated, ws)
}

func (api *worksheetApi) regenerate(ctx echo.Context) error {
	data, studentID, err := api.bindGenerateRequest(ctx)
	if err != nil {
		return err
	}

	ws, err := api.svc.Regenerate(ctx.Request().Context(), studentID, data.Subject)
	if err != nil {
		return errors.Wrap(err, "regenerating worksheet")
	}
	return ctx.JSON(http.StatusCreated, ws)
}

func (api *worksheetApi) query(ctx echo.Context) error {
	filter := new(worksheet.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []worksheet.Worksheet{})
	}

	// students only see their own worksheets
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsStudent {
		filter.StudentID = claims.Subject
	}

	sheets, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying worksheets")
	}
	if sheets == nil {
		sheets = []worksheet.Worksheet{}
	}
	return ctx.JSON(http.StatusOK, sheets)
}

func (api *worksheetApi) getPending(ctx echo.Context) error {
	subj := core.CleanString(ctx.QueryParam("subject"), true /* lower */)
	if subj == "" {
		return core.NewFieldError("subject", "this field is required")
	}
	studentID, err := resolveStudentID(ctx, core.CleanString(ctx.QueryParam("student_id")))
	if err != nil {
		return err
	}

	ws, err := api.svc.GetPending(ctx.Request().Context(), studentID, subj)
	if err != nil {
		if errors.Cause(err) == worksheet.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting pending worksheet")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *worksheetApi) retrieve(ctx echo.Context) error {
	ws, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == worksheet.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting worksheet")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsStudent && ws.StudentID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *worksheetApi) review(ctx echo.Context) error {
	ws, reviews, err := api.svc.Review(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == worksheet.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reviewing worksheet")
	}
	return ctx.JSON(http.StatusOK, WorksheetReviewResponse{Worksheet: ws, Exercises: reviews})
}

func (api *worksheetApi) saveDraft(ctx echo.Context) error {
	data, studentID, err := api.bindAnswersRequest(ctx)
	if err != nil {
		return err
	}

	ws, err := api.svc.SaveDraft(ctx.Request().Context(), ctx.Param("id"), studentID, data.Answers)
	if err != nil {
		if errors.Cause(err) == worksheet.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "saving worksheet draft")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *worksheetApi) submit(ctx echo.Context) error {
	data, studentID, err := api.bindAnswersRequest(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), studentID, data.Answers)
	if err != nil {
		if errors.Cause(err) == worksheet.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "submitting worksheet")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *worksheetApi) bindGenerateRequest(ctx echo.Context) (GenerateWorksheetRequest, string, error) {
	var data GenerateWorksheetRequest
	if err := ctx.Bind(&data); err != nil {
		return data, "", errors.Wrap(err, "binding to GenerateWorksheetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return data, "", err
	}
	studentID, err := resolveStudentID(ctx, data.StudentID)
	return data, studentID, err
}

func (api *worksheetApi) bindAnswersRequest(ctx echo.Context) (WorksheetAnswersRequest, string, error) {
	var data WorksheetAnswersRequest
	if err := ctx.Bind(&data); err != nil {
		return data, "", errors.Wrap(err, "binding to WorksheetAnswersRequest")
	}
	data.Clean()
	studentID, err := resolveStudentID(ctx, data.StudentID)
	return data, studentID, err
}

// resolveStudentID picks the student a worksheet operation acts on: students
// always act on themselves, trainers and admins must name one.
func resolveStudentID(ctx echo.Context, requested string) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	if claims.IsStudent {
		if requested != "" && requested != claims.Subject {
			return "", errHttpForbidden
		}
		return claims.Subject, nil
	}
	if requested == "" {
		return "", core.NewFieldError("student_id", "this field is required")
	}
	return requested, nil
}

type (
	GenerateWorksheetRequest struct {
		Subject   string `json:"subject" validate:"required"`
		StudentID string `json:"student_id"`
	}

	// WorksheetAnswersRequest carries per-exercise answers keyed by exercise
	// ID. An exercise missing from the map keeps its stored state on draft
	// saves and grades as unanswered on submission.
	WorksheetAnswersRequest struct {
		StudentID string              `json:"student_id"`
		Answers   map[string][]string `json:"answers"`
	}

	WorksheetReviewResponse struct {
		Worksheet worksheet.Worksheet        `json:"worksheet"`
		Exercises []worksheet.ExerciseReview `json:"exercises"`
	}
)

func (gr *GenerateWorksheetRequest) Validate(validate *validator.Validate) error {
	gr.Subject = core.CleanString(gr.Subject, true /* lower */)
	gr.StudentID = core.CleanString(gr.StudentID)
	return validate.Struct(gr)
}

func (ar *WorksheetAnswersRequest) Clean() {
	ar.StudentID = core.CleanString(ar.StudentID)
}
