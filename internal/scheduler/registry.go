package scheduler

import "context"

// Job is a task run on every scheduler cycle
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with jobs, skipping nils
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
