package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
)

var topicOrderingFields = []string{"subject", "short_name", "type", "created_at", "updated_at"}

type topicApi struct {
	svc      topic.Service
	validate *validator.Validate
}

// registerTopicAPI mounts the topic endpoints. Topics are authoring material;
// the whole group is restricted to trainers and admins.
func registerTopicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc topic.Service, validate *validator.Validate) {
	api := topicApi{
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/topics", jwt, trainerMiddleware())
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.DELETE("", api.destroyMultiple)

	dg := tg.Group("/:id", topicObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *topicApi) create(ctx echo.Context) error {
	var data topic.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	tpc, err := api.svc.Create(data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, tpc)
}

func (api *topicApi) query(ctx echo.Context) error {
	filter := new(topic.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []topic.Topic{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, topicOrderingFields...)

	topics, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []topic.Topic{}
	}
	return ctx.JSON(http.StatusOK, topics)
}

func (api *topicApi) retrieve(ctx echo.Context) error {
	tpc, ok := ctx.Get("object").(topic.Topic)
	if !ok {
		return errors.Wrap(errTopicNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, tpc)
}

func (api *topicApi) update(ctx echo.Context) error {
	tpc, ok := ctx.Get("object").(topic.Topic)
	if !ok {
		return errors.Wrap(errTopicNotFoundInCtx, "retrieving object from context")
	}

	var data topic.UpdateTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err := data.Validate(tpc, api.validate); err != nil {
		return err
	}

	tpc, err := api.svc.Update(tpc.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ctx.JSON(http.StatusOK, tpc)
}

func (api *topicApi) destroy(ctx echo.Context) error {
	tpc, ok := ctx.Get("object").(topic.Topic)
	if !ok {
		return errors.Wrap(errTopicNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(tpc.ID); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *topicApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting topics")
	}
	return ctx.NoContent(http.StatusNoContent)
}

var errTopicNotFoundInCtx = errors.New("topic object not found in echo.Context")

// topicObjectMiddleware loads the topic from the `:id` path param into the
// context, 404ing unknown IDs before the handler runs.
func topicObjectMiddleware(svc topic.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tpc, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == topic.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding topic by ID")
			}
			ctx.Set("object", tpc)
			return next(ctx)
		}
	}
}
