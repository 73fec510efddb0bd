// services/tasks.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"
)

// ErrUnknownTask is returned by RunTask for a name that is not a task.
var ErrUnknownTask = errors.New("unknown task")

// TaskFunc runs one named pipeline task.
type TaskFunc func(ctx context.Context) error

// Tasks returns the named tasks of p, keyed by name.
func (p *Pipeline) Tasks() map[string]TaskFunc {
	return map[string]TaskFunc{
		"download": p.DownloadAll,
		"load":     p.LoadAll,
		"metadata": func(ctx context.Context) error {
			_, err := p.BuildMetadata(ctx)
			return err
		},
		"charts": func(ctx context.Context) error {
			_, err := p.RenderCharts(ctx)
			return err
		},
		"publish": func(ctx context.Context) error {
			_, err := p.PublishCharts(ctx)
			return err
		},
	}
}

// TaskNames lists the task names in a stable order.
func (p *Pipeline) TaskNames() []string {
	tasks := p.Tasks()
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTask runs the task called name.
func (p *Pipeline) RunTask(ctx context.Context, name string) error {
	task, ok := p.Tasks()[name]
	if !ok {
		return fmt.Errorf("%w %q (available: %v)", ErrUnknownTask, name, p.TaskNames())
	}

	start := time.Now()
	log.Printf("Service: Running task %s\n", name)
	if err := task(ctx); err != nil {
		log.Printf("ERROR Service: Task %s failed after %s: %v\n", name, time.Since(start).Round(time.Millisecond), err)
		return err
	}
	log.Printf("Service: Task %s completed in %s\n", name, time.Since(start).Round(time.Millisecond))
	return nil
}
