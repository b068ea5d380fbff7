package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// Tables names the table of every entity kind.
type Tables struct {
	Boards        string
	Tasks         string
	Todos         string
	Tags          string
	TaskTags      string
	TaskAssignees string
	Users         string
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Boards:        "boards",
		Tasks:         "tasks",
		Todos:         "todos",
		Tags:          "tags",
		TaskTags:      "taskTags",
		TaskAssignees: "taskAssignees",
		Users:         "users",
	}
}

func (t Tables) names() []string {
	return []string{t.Boards, t.Tasks, t.Todos, t.Tags, t.TaskTags, t.TaskAssignees, t.Users}
}

type table interface {
	AddEntity(ctx context.Context, entity []byte, o *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	GetEntity(ctx context.Context, pk, rk string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, o *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, o *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, pk, rk string, o *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(o *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// Storage is the authoritative board backend on Azure Table Storage.
type Storage struct {
	boards        table
	tasks         table
	todos         table
	tags          table
	taskTags      table
	taskAssignees table
	users         table

	events *Publisher
	log    *log.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Storage from the given connection string. Committed writes
// are announced on changeQueue when it is not empty.
func New(connStr string, tables Tables, changeQueue string, logger *log.Logger) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	s := newStorage(logger)
	s.boards = svc.NewClient(tables.Boards)
	s.tasks = svc.NewClient(tables.Tasks)
	s.todos = svc.NewClient(tables.Todos)
	s.tags = svc.NewClient(tables.Tags)
	s.taskTags = svc.NewClient(tables.TaskTags)
	s.taskAssignees = svc.NewClient(tables.TaskAssignees)
	s.users = svc.NewClient(tables.Users)
	if changeQueue != "" {
		if s.events, err = NewPublisher(connStr, changeQueue); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newStorage(logger *log.Logger) *Storage {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Storage{
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func eq(field, value string) string {
	return fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''"))
}

func getEntity(ctx context.Context, t table, pk, rk string, out any) error {
	resp, err := t.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s/%s: %w", pk, rk, ErrNotFound)
		}
		return err
	}
	return sonic.ConfigStd.Unmarshal(resp.Value, out)
}

// query decodes every entity matching filter into values of E.
func query[E any](ctx context.Context, t table, filter string) ([]E, error) {
	opts := &aztables.ListEntitiesOptions{}
	if filter != "" {
		opts.Filter = &filter
	}
	pager := t.NewListEntitiesPager(opts)
	out := []E{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent E
			if err := sonic.ConfigStd.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			out = append(out, ent)
		}
	}
	return out, nil
}

// findRow returns the single entity with the given row key in any partition.
func findRow[E any](ctx context.Context, t table, rk string) (E, error) {
	var zero E
	rows, err := query[E](ctx, t, eq("RowKey", rk))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: %w", rk, ErrNotFound)
	}
	return rows[0], nil
}

func addEntity(ctx context.Context, t table, ent any) error {
	payload, err := sonic.ConfigStd.Marshal(ent)
	if err == nil {
		_, err = t.AddEntity(ctx, payload, nil)
	}
	return err
}

func upsertEntity(ctx context.Context, t table, ent any) error {
	payload, err := sonic.ConfigStd.Marshal(ent)
	if err == nil {
		_, err = t.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// replaceEntity overwrites an existing entity, dropping properties ent no
// longer carries.
func replaceEntity(ctx context.Context, t table, ent any) error {
	payload, err := sonic.ConfigStd.Marshal(ent)
	if err == nil {
		et := azcore.ETagAny
		_, err = t.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	}
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

// deleteEntity removes an entity. Missing entities are not an error.
func deleteEntity(ctx context.Context, t table, pk, rk string) error {
	et := azcore.ETagAny
	_, err := t.DeleteEntity(ctx, pk, rk, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// publish announces a committed write. Failures are logged only: the write
// itself has succeeded.
func (s *Storage) publish(ctx context.Context, entityType, entityID, change, scope, userID string) {
	if s.events == nil {
		return
	}
	ev := newChangeEvent(s.now(), entityType, entityID, change, scope, userID)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(log.Fields{
			"entity": entityType,
			"id":     entityID,
			"change": change,
		}).Warn("publish change event failed")
	}
}

func isMissing(err error) bool {
	return errors.Is(err, ErrNotFound)
}
