package resources

import (
	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
)

const (
	boardsPrefix = "boards"
	boardPrefix  = "board"
	tasksPrefix  = "tasks"
	todosPrefix  = "todos"
	tagsPrefix   = "tags"
	usersPrefix  = "users"
)

func BoardsKey() cache.Key { return cache.Key{boardsPrefix} }
func BoardKey(id string) cache.Key { return cache.Key{boardPrefix, id} }
func TasksKey(boardID string) cache.Key { return cache.Key{tasksPrefix, boardID} }
func TodosKey(taskID string) cache.Key { return cache.Key{todosPrefix, taskID} }
func TagsKey(orgID string) cache.Key { return cache.Key{tagsPrefix, orgID} }
func UsersKey() cache.Key { return cache.Key{usersPrefix} }

// AllTasks matches the task lists of every board.
func AllTasks() cache.Key { return cache.Key{tasksPrefix} }

// KeysForChange returns the cache prefixes whose views contain the entity
// named by ev.
func KeysForChange(ev domain.ChangeEvent) []cache.Key {
	switch ev.EntityType {
	case domain.EntityBoard:
		keys := []cache.Key{BoardsKey()}
		if ev.EntityID != "" {
			keys = append(keys, BoardKey(ev.EntityID))
		}
		return keys
	case domain.EntityTask:
		if ev.Scope == "" {
			return []cache.Key{AllTasks()}
		}
		return []cache.Key{TasksKey(ev.Scope)}
	case domain.EntityTodo:
		keys := []cache.Key{AllTasks()}
		if ev.Scope != "" {
			keys = append(keys, TodosKey(ev.Scope))
		}
		return keys
	case domain.EntityTaskTag, domain.EntityTaskAssignee:
		return []cache.Key{AllTasks()}
	case domain.EntityTag:
		if ev.Scope == "" {
			return []cache.Key{{tagsPrefix}, AllTasks()}
		}
		return []cache.Key{TagsKey(ev.Scope), AllTasks()}
	case domain.EntityUser:
		return []cache.Key{UsersKey(), AllTasks()}
	default:
		return nil
	}
}
