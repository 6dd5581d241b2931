package records

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/google/uuid"
)

// Controller serves the owner scoped CRUD pages of one record kind
type Controller[T Record] struct {
	Kind         Kind[T]
	Store        *Store[T]
	Auther       auth.HTTPAuthenticator
	Logger       auth.Logger
	ErrorHandler fiber.ErrorHandler
	Now          func() time.Time
}

// NewController panics when a dependency is missing
func NewController[T Record](kind Kind[T], store *Store[T], auther auth.HTTPAuthenticator, logger auth.Logger) *Controller[T] {
	if store == nil {
		panic("Missing Store in records controller...")
	}

	if auther == nil {
		panic("Missing HTTPAuthenticator in records controller...")
	}

	if logger == nil {
		panic("Missing Logger in records controller...")
	}

	return &Controller[T]{
		Kind:         kind,
		Store:        store,
		Auther:       auther,
		Logger:       logger,
		ErrorHandler: defaultErrHandler,
		Now:          time.Now,
	}
}

// RegisterRoutes mounts the controller behind the protected route middleware
func RegisterRoutes[T Record](app fiber.Router, c *Controller[T]) {
	name := c.Kind.Path[1:]
	group := app.Group(c.Kind.Path, c.Auther.ProtectedRoute())

	group.Get("/", c.Index).Name(name + ".index")
	group.Get("/add", c.AddShow).Name(name + ".add.get")
	group.Post("/add", c.AddCreate).Name(name + ".add.post")
	group.Get("/:id/edit", c.EditShow).Name(name + ".edit.get")
	group.Post("/:id/edit", c.EditUpdate).Name(name + ".edit.post")
	group.Post("/:id/delete", c.Delete).Name(name + ".delete")
	group.Get("/:id", c.Show).Name(name + ".show")
}

func (c *Controller[T]) owner(ctx *fiber.Ctx) (uuid.UUID, error) {
	user, ok := auth.UserFromLocals(ctx)
	if !ok {
		return uuid.Nil, auth.ErrUnableToFindSession
	}
	return user.ID, nil
}

func recordID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Controller[T]) editAction(record T) string {
	return c.Kind.Path + "/" + record.GetID().String() + "/edit"
}

func (c *Controller[T]) render(ctx *fiber.Ctx, view string, data fiber.Map) error {
	data["title"] = c.Kind.Title
	data["base_path"] = c.Kind.Path
	return ctx.Render(view, auth.MergeTemplateData(ctx, c.Auther.Sessions(), data))
}

func (c *Controller[T]) flash(ctx *fiber.Ctx, kind, msg string) {
	if err := c.Auther.Sessions().AddFlash(ctx, kind, msg); err != nil {
		c.Logger.Warn("failed to store flash", "error", err)
	}
}

func (c *Controller[T]) backToList(ctx *fiber.Ctx) error {
	return ctx.Redirect(c.Kind.Path, fiber.StatusFound)
}

func (c *Controller[T]) Index(ctx *fiber.Ctx) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	page := ctx.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	records, count, err := c.Store.ListByOwner(ctx.UserContext(), ownerID, Page(page))
	if err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list records"))
	}

	data := fiber.Map{
		"records": records,
		"count":   count,
		"page":    page,
	}
	if page > 1 {
		data["prev_page"] = page - 1
	}
	if page*PageSize < count {
		data["next_page"] = page + 1
	}

	return c.render(ctx, c.Kind.IndexView, data)
}

func (c *Controller[T]) formData(ctx *fiber.Ctx, form Form, action string, errs map[string]string) fiber.Map {
	options, err := c.Kind.Options(ctx.UserContext())
	if err != nil {
		c.Logger.Warn("failed to load form options", "error", err)
	}

	return fiber.Map{
		"record":      form,
		"errors":      errs,
		"options":     options,
		"action":      action,
		"date_field":  c.Kind.DateField,
		"label_field": c.Kind.LabelField,
	}
}

func (c *Controller[T]) AddShow(ctx *fiber.Ctx) error {
	form := Form{Date: c.Now().Format(DateLayout)}
	return c.render(ctx, c.Kind.FormView, c.formData(ctx, form, c.Kind.Path+"/add", map[string]string{}))
}

func (c *Controller[T]) AddCreate(ctx *fiber.Ctx) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	form := readForm(ctx, c.Kind.DateField, c.Kind.LabelField)
	if err := form.Validate(); err != nil {
		return c.render(ctx, c.Kind.FormView, c.formData(ctx, form, c.Kind.Path+"/add", auth.FormatValidationErrorToMap(err)))
	}

	values, err := form.Values(c.Now())
	if err != nil {
		return c.render(ctx, c.Kind.FormView, c.formData(ctx, form, c.Kind.Path+"/add", map[string]string{"form": err.Error()}))
	}

	record := c.Kind.New()
	c.Kind.Apply(record, values)

	if _, err := c.Store.CreateForOwner(ctx.UserContext(), ownerID, record); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save record"))
	}

	c.flash(ctx, auth.FlashSuccess, c.Kind.Title+" saved successfully")
	return c.backToList(ctx)
}

func (c *Controller[T]) load(ctx *fiber.Ctx) (T, bool, error) {
	var zero T

	ownerID, err := c.owner(ctx)
	if err != nil {
		return zero, false, err
	}

	id, ok := recordID(ctx)
	if !ok {
		return zero, false, nil
	}

	record, err := c.Store.GetByOwner(ctx.UserContext(), ownerID, id)
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return zero, false, nil
		}
		return zero, false, err
	}

	return record, true, nil
}

func (c *Controller[T]) EditShow(ctx *fiber.Ctx) error {
	record, found, err := c.load(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if !found {
		c.flash(ctx, auth.FlashError, c.Kind.Title+" not found")
		return c.backToList(ctx)
	}

	action := c.editAction(record)
	return c.render(ctx, c.Kind.FormView, c.formData(ctx, c.Kind.Form(record), action, map[string]string{}))
}

func (c *Controller[T]) EditUpdate(ctx *fiber.Ctx) error {
	record, found, err := c.load(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if !found {
		c.flash(ctx, auth.FlashError, c.Kind.Title+" not found")
		return c.backToList(ctx)
	}

	action := c.editAction(record)

	form := readForm(ctx, c.Kind.DateField, c.Kind.LabelField)
	if err := form.Validate(); err != nil {
		return c.render(ctx, c.Kind.FormView, c.formData(ctx, form, action, auth.FormatValidationErrorToMap(err)))
	}

	values, err := form.Values(c.Now())
	if err != nil {
		return c.render(ctx, c.Kind.FormView, c.formData(ctx, form, action, map[string]string{"form": err.Error()}))
	}

	c.Kind.Apply(record, values)

	if _, err := c.Store.UpdateForOwner(ctx.UserContext(), record.GetOwnerID(), record); err != nil {
		if persistence.IsRecordNotFound(err) {
			return c.backToList(ctx)
		}
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update record"))
	}

	c.flash(ctx, auth.FlashSuccess, c.Kind.Title+" updated successfully")
	return c.backToList(ctx)
}

func (c *Controller[T]) Delete(ctx *fiber.Ctx) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	id, ok := recordID(ctx)
	if !ok {
		return c.backToList(ctx)
	}

	if err := c.Store.DeleteForOwner(ctx.UserContext(), ownerID, id); err != nil {
		if persistence.IsRecordNotFound(err) {
			c.flash(ctx, auth.FlashError, c.Kind.Title+" not found")
			return c.backToList(ctx)
		}
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete record"))
	}

	c.flash(ctx, auth.FlashSuccess, c.Kind.Title+" removed")
	return c.backToList(ctx)
}

// Show returns a single owned record as JSON
func (c *Controller[T]) Show(ctx *fiber.Ctx) error {
	record, found, err := c.load(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load record",
		})
	}

	if !found {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	}

	return ctx.JSON(record)
}

func defaultErrHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		code = richErr.Code
	}
	return c.Status(code).Render("errors/500", fiber.Map{
		"message": err.Error(),
	})
}
