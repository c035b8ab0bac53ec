package cron

import "context"

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, one per name.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register appends job. Nil jobs and jobs whose name is already taken are
// ignored; Register reports whether job was added.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	for _, existing := range r.jobs {
		if existing.Name() == job.Name() {
			return false
		}
	}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
