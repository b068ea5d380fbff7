// Package api exposes the board cache and its optimistic mutations over HTTP
// for a thin UI shell. Reads are served from the cache, so they include the
// projections of mutations that have not settled yet.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
	"github.com/AndreEgeli/theAtlasBoard/resources"
)

// Server owns the mutation sets of the board list and user list. Sets scoped
// to one board, task or organization are pooled: concurrent requests share
// one set and it is dropped once none of them holds it.
type Server struct {
	cache   resources.Loader
	engine  *optimistic.Engine
	backend resources.Backend
	userID  string
	log     *log.Logger

	boards *resources.Boards
	users  *resources.Users

	tasks   *pool[*resources.Tasks]
	todos   *pool[*resources.Todos]
	details *pool[*resources.BoardDetails]
	tags    *pool[*resources.Tags]
}

// NewServer builds a server acting as userID. loader must read through the
// same store the engine mutates.
func NewServer(loader resources.Loader, engine *optimistic.Engine, backend resources.Backend, userID string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{
		cache:   loader,
		engine:  engine,
		backend: backend,
		userID:  userID,
		log:     logger,
		boards:  resources.NewBoards(engine, backend, userID),
		users:   resources.NewUsers(engine, backend),
	}
	s.tasks = newPool(func(boardID string) *resources.Tasks {
		return resources.NewTasks(engine, backend, backend, boardID, userID)
	})
	s.todos = newPool(func(taskID string) *resources.Todos {
		return resources.NewTodos(engine, backend, taskID, userID)
	})
	s.details = newPool(func(boardID string) *resources.BoardDetails {
		return resources.NewBoardDetails(engine, backend, boardID)
	})
	s.tags = newPool(func(orgID string) *resources.Tags {
		return resources.NewTags(engine, backend, orgID)
	})
	return s
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	e.GET("/healthz", s.healthz)

	e.GET("/api/boards", s.listBoards)
	e.POST("/api/boards", s.createBoard)
	e.GET("/api/boards/:board", s.getBoard)
	e.PATCH("/api/boards/:board", s.updateBoard)
	e.DELETE("/api/boards/:board", s.deleteBoard)

	e.GET("/api/boards/:board/tasks", s.listTasks)
	e.POST("/api/boards/:board/tasks", s.createTask)
	e.PATCH("/api/boards/:board/tasks/:id", s.updateTask)
	e.DELETE("/api/boards/:board/tasks/:id", s.deleteTask)
	e.POST("/api/boards/:board/tasks/:id/move", s.moveTask)
	e.POST("/api/boards/:board/tasks/:id/advance", s.advanceTask)
	e.POST("/api/boards/:board/swap", s.swapTasks)

	e.POST("/api/boards/:board/tasks/:id/todos", s.createTodo)
	e.PATCH("/api/boards/:board/tasks/:id/todos/:todo", s.updateTodo)
	e.DELETE("/api/boards/:board/tasks/:id/todos/:todo", s.deleteTodo)
	e.PUT("/api/boards/:board/tasks/:id/tags/:tag", s.addTag)
	e.DELETE("/api/boards/:board/tasks/:id/tags/:tag", s.removeTag)
	e.PUT("/api/boards/:board/tasks/:id/assignees/:user", s.assign)
	e.DELETE("/api/boards/:board/tasks/:id/assignees/:user", s.unassign)

	e.GET("/api/tasks/:task/todos", s.listTodos)
	e.POST("/api/tasks/:task/todos", s.createTaskTodo)
	e.PATCH("/api/tasks/:task/todos/:id", s.updateTaskTodo)
	e.DELETE("/api/tasks/:task/todos/:id", s.deleteTaskTodo)

	e.GET("/api/orgs/:org/tags", s.listTags)
	e.POST("/api/orgs/:org/tags", s.createTag)
	e.PATCH("/api/orgs/:org/tags/:id", s.updateTag)
	e.DELETE("/api/orgs/:org/tags/:id", s.deleteTag)

	e.GET("/api/users", s.listUsers)
	e.POST("/api/users", s.createUser)
	e.PATCH("/api/users/:id", s.updateUser)
	e.DELETE("/api/users/:id", s.deleteUser)
}

func (s *Server) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// loadedTasks makes sure the board's task list is cached before a mutation
// that works from the cached view runs, so the projection has a base. The
// set is only taken once the load succeeded.
func (s *Server) loadedTasks(ctx context.Context, boardID string) (*resources.Tasks, func(), error) {
	if _, err := resources.Load[[]domain.Task](ctx, s.cache, resources.TasksKey(boardID)); err != nil {
		return nil, nil, err
	}
	tasks, release := s.tasks.acquire(boardID)
	return tasks, release, nil
}
