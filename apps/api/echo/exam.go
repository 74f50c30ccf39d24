package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/user"
)

type examApi struct {
	svc     exam.Service
	usrSvc  user.Service
	mailSvc core.EmailService
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc exam.Service, usrSvc user.Service, mailSvc core.EmailService) {
	api := examApi{
		svc:     svc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}

	eg := g.Group("/exams", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create)
	eg.GET("/:id", api.retrieve)
	eg.DELETE("/:id", api.destroy)
	eg.GET("/:id/download", api.download)
	eg.PATCH("/:id/status", api.updateStatus, adminMiddleware())
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.UserID = claims.Subject

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "an exam file is required"})
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	ex, err := api.svc.Create(
		ctx.Request().Context(), data, file,
		fileHdr.Filename, fileHdr.Size, fileHdr.Header.Get("Content-Type"),
	)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *examApi) query(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	filter.Clean()

	exams, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	ex, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding exam by ID")
	}
	return ctx.JSON(http.StatusOK, ex)
}

// destroy is restricted to the uploader and admins.
func (api *examApi) destroy(ctx echo.Context) error {
	ex, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding exam by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.Subject == ex.UserID) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), ex.ID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) download(ctx echo.Context) error {
	url, err := api.svc.DownloadURL(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "minting download URL")
	}
	return ctx.JSON(http.StatusOK, DownloadResponse{URL: url})
}

func (api *examApi) updateStatus(ctx echo.Context) error {
	var data StatusUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdateRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id := ctx.Param("id")
	ex, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding exam by ID")
	}

	if err := api.svc.UpdateStatus(ctx.Request().Context(), id, data.Status); err != nil {
		return errors.Wrap(err, "updating exam status")
	}
	ex.Status = data.Status

	// the status write carries no reason; a rejection reason only reaches the
	// uploader via email
	if data.Status == exam.StatusRejected {
		api.sendRejectionMail(ctx, ex, data.Reason)
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) sendRejectionMail(ctx echo.Context, ex exam.Exam, reason string) {
	uploader, err := api.usrSvc.GetByID(ctx.Request().Context(), ex.UserID)
	if err != nil {
		// uploader deleted since; nothing to notify
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "finding exam uploader"))
		return
	}
	api.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: uploader.Name, Address: uploader.Email}},
		Subject:      "Your exam was not approved",
		TemplateName: "exam-rejected",
		TemplateData: struct {
			Username string
			Title    string
			Reason   string
		}{uploader.Username, ex.Title, reason},
	})
}

type (
	StatusUpdateRequest struct {
		Status exam.Status `json:"status" validate:"required"`
		Reason string      `json:"reason"`
	}

	DownloadResponse struct {
		URL string `json:"url"`
	}
)

func (sr *StatusUpdateRequest) Validate() error {
	sr.Reason = core.CleanString(sr.Reason)
	return core.Validate.Struct(sr)
}
