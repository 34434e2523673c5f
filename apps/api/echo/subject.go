package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
)

type subjectApi struct {
	svc      subject.Service
	topicSvc topic.Service
	validate *validator.Validate
}

// registerSubjectAPI mounts the per-student subject endpoints. Students can
// read their own subjects; assigning and unassigning topics is trainer work.
func registerSubjectAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc subject.Service,
	topicSvc topic.Service,
	validate *validator.Validate,
) {
	api := subjectApi{
		svc:      svc,
		topicSvc: topicSvc,
		validate: validate,
	}

	sg := g.Group("/students/:id/subjects", jwt, ownerOrStaffMiddleware())
	sg.GET("", api.list)
	sg.GET("/:subject", api.retrieve)
	sg.PUT("/:subject/topics", api.assignTopic, trainerMiddleware())
	sg.DELETE("/:subject/topics/:topicID", api.unassignTopic, trainerMiddleware())
}

// Handlers

func (api *subjectApi) list(ctx echo.Context) error {
	sds, err := api.svc.QueryByStudent(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student subjects")
	}
	if sds == nil {
		sds = []subject.SubjectData{}
	}
	return ctx.JSON(http.StatusOK, sds)
}

func (api *subjectApi) retrieve(ctx echo.Context) error {
	sd, err := api.svc.GetForStudent(ctx.Param("id"), core.CleanString(ctx.Param("subject"), true /* lower */))
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting student subject")
	}
	return ctx.JSON(http.StatusOK, sd)
}

func (api *subjectApi) assignTopic(ctx echo.Context) error {
	var data subject.AssignTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	subj := core.CleanString(ctx.Param("subject"), true /* lower */)

	// the topic must exist and belong to the subject it is assigned under
	tpc, err := api.topicSvc.GetByID(data.TopicID)
	if err != nil {
		if errors.Cause(err) == topic.ErrNotFound {
			return core.NewFieldError("topic_id", "topic not found")
		}
		return errors.Wrap(err, "finding topic by ID")
	}
	if tpc.Subject != subj {
		return core.NewFieldError("topic_id", "topic belongs to another subject")
	}

	sd, err := api.svc.AssignTopic(ctx.Param("id"), subj, data)
	if err != nil {
		return errors.Wrap(err, "assigning topic")
	}
	return ctx.JSON(http.StatusOK, sd)
}

func (api *subjectApi) unassignTopic(ctx echo.Context) error {
	subj := core.CleanString(ctx.Param("subject"), true /* lower */)

	sd, err := api.svc.UnassignTopic(ctx.Param("id"), subj, ctx.Param("topicID"))
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "unassigning topic")
	}
	return ctx.JSON(http.StatusOK, sd)
}
