package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/flowfox/tasksync/internal/models"
	"github.com/flowfox/tasksync/syncer"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

const listReadAttempts = 3

// TasksClient exposes the Google Tasks API as the capability the sync
// engine consumes. It is bound to a single bearer token; the engine builds
// one client per sync invocation.
type TasksClient struct {
	token string
	srv   *tasks.Service
}

var _ syncer.RemoteTasks = (*TasksClient)(nil)

func NewTasksClient(token string) *TasksClient {
	return &TasksClient{token: token}
}

func (c *TasksClient) service(ctx context.Context) (*tasks.Service, error) {
	if c.srv != nil {
		return c.srv, nil
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
	srv, err := tasks.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("unable to build Tasks client: %w", err)
	}

	c.srv = srv
	return srv, nil
}

func (c *TasksClient) ListTaskLists(ctx context.Context) ([]models.RemoteTaskList, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	var lists []models.RemoteTaskList
	err = retry.Do(func() error {
		lists = lists[:0]
		pageToken := ""
		for {
			call := srv.Tasklists.List().Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Do()
			if err != nil {
				return fmt.Errorf("unable to list task lists: %w", err)
			}
			for _, item := range resp.Items {
				lists = append(lists, models.RemoteTaskList{
					ID:      item.Id,
					Title:   item.Title,
					Updated: parseTimestamp(item.Updated),
				})
			}
			if resp.NextPageToken == "" {
				return nil
			}
			pageToken = resp.NextPageToken
		}
	}, retry.Attempts(listReadAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return nil, err
	}

	return lists, nil
}

func (c *TasksClient) ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]models.RemoteTask, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.RemoteTask
	err = retry.Do(func() error {
		out = out[:0]
		pageToken := ""
		for {
			// showHidden tracks showCompleted: tasks completed in the
			// Google Tasks UI are moved to hidden, and a completed sweep
			// that skipped them would report their pairs as unmatched.
			call := srv.Tasks.List(listID).
				ShowCompleted(includeCompleted).
				ShowHidden(includeCompleted).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Do()
			if err != nil {
				return fmt.Errorf("unable to list tasks in list %s: %w", listID, err)
			}
			for _, item := range resp.Items {
				out = append(out, taskFromAPI(item))
			}
			if resp.NextPageToken == "" {
				return nil
			}
			pageToken = resp.NextPageToken
		}
	}, retry.Attempts(listReadAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *TasksClient) CreateTask(ctx context.Context, listID string, fields syncer.RemoteTaskFields) (*models.RemoteTask, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	created, err := srv.Tasks.Insert(listID, taskToAPI(fields)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create task in list %s: %w", listID, err)
	}

	task := taskFromAPI(created)
	return &task, nil
}

func (c *TasksClient) UpdateTask(ctx context.Context, listID, taskID string, fields syncer.RemoteTaskFields) (*models.RemoteTask, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := srv.Tasks.Patch(listID, taskID, taskToAPI(fields)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to update task %s: %w", taskID, err)
	}

	task := taskFromAPI(updated)
	return &task, nil
}

func (c *TasksClient) DeleteTask(ctx context.Context, listID, taskID string) error {
	srv, err := c.service(ctx)
	if err != nil {
		return err
	}

	if err := srv.Tasks.Delete(listID, taskID).Context(ctx).Do(); err != nil {
		// The task may already be gone on the remote side.
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			zap.L().Info("Task not found on remote. Already deleted.", zap.String("taskID", taskID))
			return nil
		}
		return fmt.Errorf("unable to delete task %s: %w", taskID, err)
	}

	return nil
}

func taskFromAPI(t *tasks.Task) models.RemoteTask {
	task := models.RemoteTask{
		ID:      t.Id,
		Title:   t.Title,
		Notes:   t.Notes,
		Status:  t.Status,
		Updated: parseTimestamp(t.Updated),
	}
	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			task.Due = &due
		}
	}
	return task
}

func taskToAPI(fields syncer.RemoteTaskFields) *tasks.Task {
	t := &tasks.Task{
		Title:  fields.Title,
		Notes:  fields.Notes,
		Status: fields.Status,
	}
	if fields.Due != nil {
		t.Due = fields.Due.UTC().Format(time.RFC3339)
	}
	return t
}

func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
