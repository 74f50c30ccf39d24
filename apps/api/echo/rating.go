package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	"github.com/trezcool/mitihani/core/user"
)

type ratingApi struct {
	svc     rating.Service
	examSvc exam.Service
	usrSvc  user.Service
}

func registerRatingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc rating.Service, examSvc exam.Service, usrSvc user.Service) {
	api := ratingApi{
		svc:     svc,
		examSvc: examSvc,
		usrSvc:  usrSvc,
	}

	eg := g.Group("/exams/:id/ratings", jwt)
	eg.GET("", api.queryByExam)
	eg.POST("", api.create)
	eg.GET("/mine", api.retrieveMine)
	eg.GET("/summary", api.summary)

	rg := g.Group("/ratings", jwt)
	rg.PUT("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
	rg.POST("/:id/helpful", api.markHelpful)
}

// Handlers

func (api *ratingApi) create(ctx echo.Context) error {
	var data rating.NewRating
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRating")
	}

	// reject ratings on unknown exams up front
	ex, err := api.examSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding exam by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data.ExamID = ex.ID
	data.UserID = ctxUsr.ID
	data.UserName = ctxUsr.Name
	data.UserEmail = ctxUsr.Email

	r, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating rating")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *ratingApi) queryByExam(ctx echo.Context) error {
	ratings, err := api.svc.QueryByExam(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying exam ratings")
	}
	if ratings == nil {
		ratings = []rating.Rating{}
	}
	return ctx.JSON(http.StatusOK, ratings)
}

func (api *ratingApi) retrieveMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	r, err := api.svc.GetByUser(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding rating by user")
	}
	return ctx.JSON(http.StatusOK, r)
}

// summary is always computed fresh from the live rating records, not read
// from the cached exam field.
func (api *ratingApi) summary(ctx echo.Context) error {
	summary, err := api.svc.Summary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarizing exam ratings")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// update is restricted to the rating's author.
func (api *ratingApi) update(ctx echo.Context) error {
	r, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding rating by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject != r.UserID {
		return errHttpForbidden
	}

	var data rating.UpdateRating
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRating")
	}

	r, err = api.svc.Update(ctx.Request().Context(), r.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating rating")
	}
	return ctx.JSON(http.StatusOK, r)
}

// destroy is restricted to the rating's author and admins.
func (api *ratingApi) destroy(ctx echo.Context) error {
	r, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding rating by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.Subject == r.UserID) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), r.ID); err != nil {
		return errors.Wrap(err, "deleting rating")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *ratingApi) markHelpful(ctx echo.Context) error {
	if err := api.svc.MarkHelpful(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking rating helpful")
	}
	return ctx.NoContent(http.StatusNoContent)
}
