package storage

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeTable keeps raw entities per partition and row key. Filters support
// the single equality clauses Storage issues.
type fakeTable struct {
	mu    sync.Mutex
	rows  map[string]map[string][]byte
	lists int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string]map[string][]byte{}}
}

func responseError(status int, code string) error {
	return &azcore.ResponseError{StatusCode: status, ErrorCode: code}
}

func entityKeys(raw []byte) (Entity, error) {
	var e Entity
	err := sonic.Unmarshal(raw, &e)
	return e, err
}

func (f *fakeTable) put(raw []byte, mustExist, mustNotExist bool) error {
	e, err := entityKeys(raw)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	part := f.rows[e.PartitionKey]
	_, exists := part[e.RowKey]
	if mustExist && !exists {
		return responseError(http.StatusNotFound, "ResourceNotFound")
	}
	if mustNotExist && exists {
		return responseError(http.StatusConflict, "EntityAlreadyExists")
	}
	if part == nil {
		part = map[string][]byte{}
		f.rows[e.PartitionKey] = part
	}
	part[e.RowKey] = append([]byte(nil), raw...)
	return nil
}

func (f *fakeTable) AddEntity(ctx context.Context, entity []byte, o *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	return aztables.AddEntityResponse{}, f.put(entity, false, true)
}

func (f *fakeTable) UpdateEntity(ctx context.Context, entity []byte, o *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	return aztables.UpdateEntityResponse{}, f.put(entity, true, false)
}

func (f *fakeTable) UpsertEntity(ctx context.Context, entity []byte, o *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	return aztables.UpsertEntityResponse{}, f.put(entity, false, false)
}

func (f *fakeTable) GetEntity(ctx context.Context, pk, rk string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.rows[pk][rk]
	if !ok {
		return aztables.GetEntityResponse{}, responseError(http.StatusNotFound, "ResourceNotFound")
	}
	return aztables.GetEntityResponse{Value: raw}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, pk, rk string, o *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[pk][rk]; !ok {
		return aztables.DeleteEntityResponse{}, responseError(http.StatusNotFound, "ResourceNotFound")
	}
	delete(f.rows[pk], rk)
	return aztables.DeleteEntityResponse{}, nil
}

func (f *fakeTable) NewListEntitiesPager(o *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	field, value := "", ""
	if o != nil && o.Filter != nil {
		var rest string
		field, rest, _ = strings.Cut(*o.Filter, " eq '")
		value = strings.ReplaceAll(strings.TrimSuffix(rest, "'"), "''", "'")
	}
	f.mu.Lock()
	f.lists++
	var matched [][]byte
	for pk, part := range f.rows {
		for rk, raw := range part {
			if field == "PartitionKey" && pk != value || field == "RowKey" && rk != value {
				continue
			}
			matched = append(matched, raw)
		}
	}
	f.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return string(matched[i]) < string(matched[j]) })

	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool { return false },
		Fetcher: func(ctx context.Context, _ *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			return aztables.ListEntitiesResponse{Entities: matched}, nil
		},
	})
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return azqueue.EnqueueMessagesResponse{}, f.err
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (f *fakeQueue) events(t *testing.T) []domain.ChangeEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeEvent, 0, len(f.messages))
	for _, m := range f.messages {
		var ev domain.ChangeEvent
		if err := sonic.UnmarshalString(m, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func newTestStorage(t *testing.T) (*Storage, *fakeQueue) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := newStorage(logger)
	s.boards = newFakeTable()
	s.tasks = newFakeTable()
	s.todos = newFakeTable()
	s.tags = newFakeTable()
	s.taskTags = newFakeTable()
	s.taskAssignees = newFakeTable()
	s.users = newFakeTable()
	q := &fakeQueue{}
	s.events = &Publisher{queue: q}
	s.now = func() time.Time { return testNow }
	var mu sync.Mutex
	seq := 0
	s.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return s, q
}
