package download_registry

import (
	"fmt"
	"maps"

	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// DownloadJob is the registry's view of one backend job.
type DownloadJob = ytdl_api.DownloadJob

// MediaID is the registry key.
type MediaID = ytdl_api.MediaID

// State is an immutable, ordered collection of jobs keyed by MediaID.
// Reduce never modifies a State it was given.
type State struct {
	order []MediaID
	jobs  map[MediaID]DownloadJob
}

// NewState builds a State from jobs in list order. When a MediaID appears more
// than once, the first position is kept with the values of the last occurrence.
func NewState(jobs []DownloadJob) State {
	s := State{
		order: make([]MediaID, 0, len(jobs)),
		jobs:  make(map[MediaID]DownloadJob, len(jobs)),
	}
	for _, job := range jobs {
		if _, exists := s.jobs[job.MediaID]; !exists {
			s.order = append(s.order, job.MediaID)
		}
		s.jobs[job.MediaID] = job
	}
	return s
}

// Len returns the number of jobs.
func (s State) Len() int {
	return len(s.order)
}

// Get looks up a job by id.
func (s State) Get(id MediaID) (DownloadJob, bool) {
	job, ok := s.jobs[id]
	return job, ok
}

// Jobs returns a copy of the jobs in insertion order.
func (s State) Jobs() []DownloadJob {
	jobs := make([]DownloadJob, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, s.jobs[id])
	}
	return jobs
}

// IDs returns a copy of the keys in insertion order.
func (s State) IDs() []MediaID {
	return append([]MediaID(nil), s.order...)
}

// ActionKind names a registry mutation.
type ActionKind string

const (
	ActionReplaceAll   ActionKind = "FETCH_ALL"
	ActionStatusUpdate ActionKind = "STATUS_UPDATE"
	ActionDelete       ActionKind = "DELETE"
)

// StatusPatch is a partial update of one job. Status is always applied; nil
// fields are left untouched.
type StatusPatch struct {
	MediaID       MediaID
	Status        ytdl_api.DownloadStatus
	Progress      *int
	Filesize      *int64
	FilesizeHuman *string
}

// Action is one mutation request. Only the fields relevant to Kind are read.
type Action struct {
	Kind ActionKind

	Jobs []DownloadJob // ActionReplaceAll

	Patch StatusPatch // ActionStatusUpdate

	MediaID MediaID                 // ActionDelete
	Status  ytdl_api.DownloadStatus // ActionDelete
}

func ReplaceAllAction(jobs []DownloadJob) Action {
	return Action{Kind: ActionReplaceAll, Jobs: jobs}
}

func StatusUpdateAction(patch StatusPatch) Action {
	return Action{Kind: ActionStatusUpdate, Patch: patch}
}

func DeleteAction(id MediaID, status ytdl_api.DownloadStatus) Action {
	return Action{Kind: ActionDelete, MediaID: id, Status: status}
}

// UnknownActionError is the panic value raised by Reduce for an action kind it
// does not handle.
type UnknownActionError ActionKind

func (e UnknownActionError) Error() string {
	return fmt.Sprintf("download registry: unknown action %q", string(e))
}

// Reduce returns the state resulting from applying a to s.
// It panics with UnknownActionError when a.Kind is not one of the Action* constants.
func Reduce(s State, a Action) State {
	next, _ := reduce(s, a)
	return next
}

// reduce is Reduce that also reports whether the state changed.
func reduce(s State, a Action) (State, bool) {
	switch a.Kind {
	case ActionReplaceAll:
		return NewState(a.Jobs), true
	case ActionStatusUpdate:
		return applyStatusUpdate(s, a.Patch)
	case ActionDelete:
		return applyDelete(s, a.MediaID, a.Status)
	default:
		panic(UnknownActionError(a.Kind))
	}
}

// applyStatusUpdate merges patch into the matching job. Updates for unknown
// ids are ignored: the job was deleted or belongs to another listing.
func applyStatusUpdate(s State, patch StatusPatch) (State, bool) {
	job, ok := s.jobs[patch.MediaID]
	if !ok {
		return s, false
	}
	job.Status = patch.Status
	if patch.Progress != nil {
		job.Progress = *patch.Progress
	}
	if patch.Filesize != nil {
		job.Filesize = *patch.Filesize
	}
	if patch.FilesizeHuman != nil {
		job.FilesizeHuman = *patch.FilesizeHuman
	}

	jobs := maps.Clone(s.jobs)
	jobs[patch.MediaID] = job
	return State{order: s.order, jobs: jobs}, true
}

// applyDelete removes the job only once the backend confirmed the deletion.
func applyDelete(s State, id MediaID, status ytdl_api.DownloadStatus) (State, bool) {
	if status != ytdl_api.StatusDeleted {
		return s, false
	}
	if _, ok := s.jobs[id]; !ok {
		return s, false
	}

	jobs := maps.Clone(s.jobs)
	delete(jobs, id)
	order := make([]MediaID, 0, len(s.order)-1)
	for _, existing := range s.order {
		if existing != id {
			order = append(order, existing)
		}
	}
	return State{order: order, jobs: jobs}, true
}
