package command

import (
	"context"

	"github.com/rshield/rshield/internal/model"
)

// BruteCreateTask implements brute_create_task.
func (s *Surface) BruteCreateTask(t model.BruteForceTask) (int64, error) {
	if s.BruteForce == nil {
		return 0, errNoBruteForce
	}
	return s.BruteForce.CreateTask(t)
}

// BruteGetTasks implements brute_get_tasks.
func (s *Surface) BruteGetTasks() ([]model.BruteForceTask, error) {
	if s.BruteForce == nil {
		return nil, errNoBruteForce
	}
	return s.BruteForce.Tasks()
}

// BruteGetResults implements brute_get_results.
func (s *Surface) BruteGetResults(taskID int64) ([]model.BruteForceResult, error) {
	if s.BruteForce == nil {
		return nil, errNoBruteForce
	}
	return s.BruteForce.Results(taskID)
}

// BruteDeleteTask implements brute_delete_task.
func (s *Surface) BruteDeleteTask(taskID int64) error {
	if s.BruteForce == nil {
		return errNoBruteForce
	}
	return s.BruteForce.DeleteTask(taskID)
}

// BruteStartTask implements brute_start_task.
func (s *Surface) BruteStartTask(ctx context.Context, taskID int64) error {
	if s.BruteForce == nil {
		return errNoBruteForce
	}
	return s.BruteForce.Start(ctx, taskID)
}

// BruteStopTask implements brute_stop_task.
func (s *Surface) BruteStopTask(taskID int64) error {
	if s.BruteForce == nil {
		return errNoBruteForce
	}
	return s.BruteForce.Stop(taskID)
}
