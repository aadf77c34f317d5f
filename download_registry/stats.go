package download_registry

import (
	"sync/atomic"

	"github.com/isseis/go-ytdl-client/ytdl_api"
)

type counter struct {
	count int64
}

func (c *counter) Increment() {
	atomic.AddInt64(&c.count, 1)
}

func (c *counter) Get() int {
	return int(atomic.LoadInt64(&c.count))
}

// Stats summarizes the jobs of a state by status.
type Stats struct {
	Total      int // Number of jobs
	Active     int // Started, downloading or converting
	Finished   int // Finished or already downloaded by the client
	Failed     int // Failed on the backend
	Dispatched int // Number of actions dispatched since the registry was created
}

// Stats returns per-status counts of the current jobs.
func (r *Registry) Stats() Stats {
	st := Stats{Dispatched: r.dispatchN.Get()}
	for _, job := range r.View() {
		st.Total++
		switch job.Status {
		case ytdl_api.StatusStarted, ytdl_api.StatusDownloading, ytdl_api.StatusConverting:
			st.Active++
		case ytdl_api.StatusFinished, ytdl_api.StatusDownloaded:
			st.Finished++
		case ytdl_api.StatusFailed:
			st.Failed++
		}
	}
	return st
}
