package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/resources"
	"github.com/AndreEgeli/theAtlasBoard/storage"
)

const maxBodySize = 1 << 20

var errEmptyBody = errors.New("empty body")

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type swapRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type taskTagRequest struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

type assigneeRequest struct {
	Name string `json:"name,omitempty"`
}

// decode reads a JSON body of at most maxBodySize bytes into v. Unknown
// fields are rejected.
func decode(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeOptional is decode for bodies that may be left out.
func decodeOptional(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := decode(c, v); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func badRequest(c echo.Context, msg string) error {
	return c.String(http.StatusBadRequest, msg)
}

// fail maps an error from the cache or a mutation to a response.
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, resources.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, resources.ErrNoTransition):
		return c.String(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		return c.NoContent(http.StatusServiceUnavailable)
	}
	s.log.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.String(http.StatusBadGateway, err.Error())
}

func (s *Server) listBoards(c echo.Context) error {
	boards, err := resources.Load[[]domain.Board](c.Request().Context(), s.cache, resources.BoardsKey())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, boards)
}

func (s *Server) createBoard(c echo.Context) error {
	var in domain.BoardInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return badRequest(c, "name is required")
	}
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.Board](ctx, s.cache, resources.BoardsKey()); err != nil {
		return s.fail(c, err)
	}
	b, err := s.boards.Create.Invoke(ctx, in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) getBoard(c echo.Context) error {
	b, err := resources.Load[domain.Board](c.Request().Context(), s.cache, resources.BoardKey(c.Param("board")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) updateBoard(c echo.Context) error {
	var upd domain.BoardUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Empty() {
		return badRequest(c, "no fields to update")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return badRequest(c, "name must not be empty")
	}
	id := c.Param("board")
	ctx := c.Request().Context()
	if _, err := resources.Load[domain.Board](ctx, s.cache, resources.BoardKey(id)); err != nil {
		return s.fail(c, err)
	}
	details, release := s.details.acquire(id)
	defer release()
	b, err := details.Update.Invoke(ctx, resources.BoardUpdateInput{ID: id, Update: upd})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBoard(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.Board](ctx, s.cache, resources.BoardsKey()); err != nil {
		return s.fail(c, err)
	}
	if _, err := s.boards.Delete.Invoke(ctx, c.Param("board")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// splitParam flattens repeated and comma separated query values.
func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseFilter(c echo.Context) (domain.Filter, error) {
	q := c.QueryParams()
	f := domain.Filter{
		Tags:      splitParam(q["tag"]),
		Assignees: splitParam(q["assignee"]),
	}
	for _, v := range splitParam(q["status"]) {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	if v := strings.TrimSpace(q.Get("archived")); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("invalid archived flag")
		}
		f.ShowArchived = show
	}
	return f, nil
}

func (s *Server) listTasks(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	tasks, err := resources.Load[[]domain.Task](c.Request().Context(), s.cache, resources.TasksKey(c.Param("board")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: f.Apply(tasks)})
}

func validPosition(p domain.Position) bool {
	return p.XIndex >= 0 && p.YIndex >= 0 && p.Order >= 0
}

func (s *Server) createTask(c echo.Context) error {
	var in domain.TaskInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return badRequest(c, "title is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return badRequest(c, "invalid status")
	}
	if !validPosition(in.Position) {
		return badRequest(c, "invalid position")
	}
	ctx := c.Request().Context()
	tasks, release, err := s.loadedTasks(ctx, c.Param("board"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	t, err := tasks.Create.Invoke(ctx, in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// cachedTask loads the board's tasks and checks that id is among them.
func (s *Server) cachedTask(c echo.Context) (*resources.Tasks, domain.Task, func(), error) {
	tasks, release, err := s.loadedTasks(c.Request().Context(), c.Param("board"))
	if err != nil {
		return nil, domain.Task{}, nil, err
	}
	t, err := tasks.Find(c.Param("id"))
	if err != nil {
		release()
		return nil, domain.Task{}, nil, err
	}
	return tasks, t, release, nil
}

func (s *Server) updateTask(c echo.Context) error {
	var upd domain.TaskUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Empty() {
		return badRequest(c, "no fields to update")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return badRequest(c, "invalid status")
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return badRequest(c, "title must not be empty")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	t, err := tasks.Update.Invoke(c.Request().Context(), resources.TaskUpdateInput{ID: cur.ID, Update: upd})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	tasks, release, err := s.loadedTasks(ctx, c.Param("board"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	if _, err := tasks.Delete.Invoke(ctx, c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) moveTask(c echo.Context) error {
	var pos domain.Position
	if err := decode(c, &pos); err != nil {
		return badRequest(c, "invalid body")
	}
	if !validPosition(pos) {
		return badRequest(c, "invalid position")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	t, err := tasks.Move.Invoke(c.Request().Context(), resources.MoveInput{ID: cur.ID, Position: pos})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) advanceTask(c echo.Context) error {
	ctx := c.Request().Context()
	tasks, release, err := s.loadedTasks(ctx, c.Param("board"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	t, err := tasks.Advance(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) swapTasks(c echo.Context) error {
	var req swapRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.A == "" || req.B == "" {
		return badRequest(c, "a and b are required")
	}
	if req.A == req.B {
		return badRequest(c, "cannot swap a task with itself")
	}
	ctx := c.Request().Context()
	tasks, release, err := s.loadedTasks(ctx, c.Param("board"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	if err := tasks.Swap(ctx, req.A, req.B); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) createTodo(c echo.Context) error {
	var in domain.TodoInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return badRequest(c, "title is required")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	td, err := tasks.CreateTodo.Invoke(c.Request().Context(), resources.TaskTodoInput{TaskID: cur.ID, Todo: in})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, td)
}

func (s *Server) updateTodo(c echo.Context) error {
	var upd domain.TodoUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Title == nil && upd.Completed == nil {
		return badRequest(c, "no fields to update")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	td, err := tasks.UpdateTodo.Invoke(c.Request().Context(), resources.TaskTodoUpdate{
		TaskID: cur.ID,
		TodoID: c.Param("todo"),
		Update: upd,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, td)
}

func (s *Server) deleteTodo(c echo.Context) error {
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	ref := resources.TaskTodoRef{TaskID: cur.ID, TodoID: c.Param("todo")}
	if _, err := tasks.DeleteTodo.Invoke(c.Request().Context(), ref); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) addTag(c echo.Context) error {
	var req taskTagRequest
	if err := decodeOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	tag := domain.Tag{ID: c.Param("tag"), Name: req.Name, Color: req.Color}
	if _, err := tasks.AddTag.Invoke(c.Request().Context(), resources.TaskTagInput{TaskID: cur.ID, Tag: tag}); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) removeTag(c echo.Context) error {
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	in := resources.TaskTagInput{TaskID: cur.ID, Tag: domain.Tag{ID: c.Param("tag")}}
	if _, err := tasks.RemoveTag.Invoke(c.Request().Context(), in); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) assign(c echo.Context) error {
	var req assigneeRequest
	if err := decodeOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	in := resources.AssigneeInput{TaskID: cur.ID, User: domain.Assignee{ID: c.Param("user"), Name: req.Name}}
	if _, err := tasks.Assign.Invoke(c.Request().Context(), in); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) unassign(c echo.Context) error {
	tasks, cur, release, err := s.cachedTask(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	in := resources.AssigneeInput{TaskID: cur.ID, User: domain.Assignee{ID: c.Param("user")}}
	if _, err := tasks.Unassign.Invoke(c.Request().Context(), in); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listTags(c echo.Context) error {
	tags, err := resources.Load[[]domain.Tag](c.Request().Context(), s.cache, resources.TagsKey(c.Param("org")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (s *Server) createTag(c echo.Context) error {
	var in domain.TagInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return badRequest(c, "name is required")
	}
	org := c.Param("org")
	if in.OrganizationID != "" && in.OrganizationID != org {
		return badRequest(c, "organization mismatch")
	}
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.Tag](ctx, s.cache, resources.TagsKey(org)); err != nil {
		return s.fail(c, err)
	}
	tags, release := s.tags.acquire(org)
	defer release()
	tag, err := tags.Create.Invoke(ctx, in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, tag)
}

func (s *Server) updateTag(c echo.Context) error {
	var upd domain.TagUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Name == nil && upd.Color == nil {
		return badRequest(c, "no fields to update")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return badRequest(c, "name must not be empty")
	}
	org := c.Param("org")
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.Tag](ctx, s.cache, resources.TagsKey(org)); err != nil {
		return s.fail(c, err)
	}
	tags, release := s.tags.acquire(org)
	defer release()
	tag, err := tags.Update.Invoke(ctx, resources.TagUpdateInput{ID: c.Param("id"), Update: upd})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tag)
}

func (s *Server) deleteTag(c echo.Context) error {
	org := c.Param("org")
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.Tag](ctx, s.cache, resources.TagsKey(org)); err != nil {
		return s.fail(c, err)
	}
	tags, release := s.tags.acquire(org)
	defer release()
	if _, err := tags.Delete.Invoke(ctx, c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listUsers(c echo.Context) error {
	users, err := resources.Load[[]domain.User](c.Request().Context(), s.cache, resources.UsersKey())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (s *Server) updateUser(c echo.Context) error {
	var upd domain.UserUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Name == nil && upd.AvatarURL == nil && upd.ActiveOrganizationID == nil {
		return badRequest(c, "no fields to update")
	}
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.User](ctx, s.cache, resources.UsersKey()); err != nil {
		return s.fail(c, err)
	}
	u, err := s.users.UpdateProfile.Invoke(ctx, resources.UserUpdateInput{ID: c.Param("id"), Update: upd})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) createUser(c echo.Context) error {
	var in domain.UserInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return badRequest(c, "email is required")
	}
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.User](ctx, s.cache, resources.UsersKey()); err != nil {
		return s.fail(c, err)
	}
	u, err := s.users.Create.Invoke(ctx, in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) deleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := resources.Load[[]domain.User](ctx, s.cache, resources.UsersKey()); err != nil {
		return s.fail(c, err)
	}
	if _, err := s.users.Delete.Invoke(ctx, c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// loadedTodos is loadedTasks for a task's standalone todo list.
func (s *Server) loadedTodos(ctx context.Context, taskID string) ([]domain.Todo, *resources.Todos, func(), error) {
	list, err := resources.Load[[]domain.Todo](ctx, s.cache, resources.TodosKey(taskID))
	if err != nil {
		return nil, nil, nil, err
	}
	todos, release := s.todos.acquire(taskID)
	return list, todos, release, nil
}

func (s *Server) listTodos(c echo.Context) error {
	list, err := resources.Load[[]domain.Todo](c.Request().Context(), s.cache, resources.TodosKey(c.Param("task")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createTaskTodo(c echo.Context) error {
	var in domain.TodoInput
	if err := decode(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return badRequest(c, "title is required")
	}
	ctx := c.Request().Context()
	_, todos, release, err := s.loadedTodos(ctx, c.Param("task"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	td, err := todos.Create.Invoke(ctx, in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, td)
}

func (s *Server) updateTaskTodo(c echo.Context) error {
	var upd domain.TodoUpdate
	if err := decode(c, &upd); err != nil {
		return badRequest(c, "invalid body")
	}
	if upd.Title == nil && upd.Completed == nil {
		return badRequest(c, "no fields to update")
	}
	ctx := c.Request().Context()
	list, todos, release, err := s.loadedTodos(ctx, c.Param("task"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	id := c.Param("id")
	if !hasTodo(list, id) {
		return s.fail(c, resources.ErrNotFound)
	}
	td, err := todos.Update.Invoke(ctx, resources.TodoUpdateInput{ID: id, Update: upd})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, td)
}

func (s *Server) deleteTaskTodo(c echo.Context) error {
	ctx := c.Request().Context()
	_, todos, release, err := s.loadedTodos(ctx, c.Param("task"))
	if err != nil {
		return s.fail(c, err)
	}
	defer release()
	if _, err := todos.Delete.Invoke(ctx, c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func hasTodo(list []domain.Todo, id string) bool {
	for _, td := range list {
		if td.ID == id {
			return true
		}
	}
	return false
}
