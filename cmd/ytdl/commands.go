package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/isseis/go-ytdl-client/app_state"
	"github.com/isseis/go-ytdl-client/dashboard"
	"github.com/isseis/go-ytdl-client/ytdl_api"
	"github.com/isseis/go-ytdl-client/ytdl_client"
)

// app is what every command runs against.
type app struct {
	client *ytdl_client.Client
	cfg    *ytdl_client.Config
	out    io.Writer
}

type command struct {
	name       string
	args       string
	help       string
	fullscreen bool
	run        func(ctx context.Context, a *app, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "watch", help: "Interactive dashboard (default)", fullscreen: true, run: runWatch},
		{name: "list", help: "Print the download list", run: runList},
		{name: "follow", help: "Print status changes until the server ends the stream", run: runFollow},
		{name: "preview", args: "<url>", help: "Show title, streams and formats of a URL", run: runPreview},
		{name: "enqueue", args: "[-video id] [-audio id] [-format f] -url <url>", help: "Start a download", run: runEnqueue},
		{name: "delete", args: "<media-id>", help: "Delete a downloaded file", run: runDelete},
		{name: "retry", args: "<media-id>", help: "Retry a failed download", run: runRetry},
		{name: "fetch", args: "[-output dir] <media-id>", help: "Save a finished file locally", run: runFetch},
		{name: "version", help: "Print client and server versions", run: runVersion},
		{name: "reset-identity", help: "Forget the client identity", run: runResetIdentity},
	}
}

// selectCommand picks the command named by args[0], "watch" when args is empty.
func selectCommand(args []string) (command, []string, error) {
	name := "watch"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	for _, c := range commands {
		if c.name == name {
			return c, args, nil
		}
	}
	return command{}, nil, fmt.Errorf("unknown command: %s", name)
}

// singleArg returns the only positional argument of a command.
func singleArg(name string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%s expects exactly one argument", name)
	}
	return strings.TrimSpace(args[0]), nil
}

// printNotices writes queued notifications; errors go to stderr.
func (a *app) printNotices() {
	for _, n := range a.client.State().Notices.Drain() {
		if n.Level == app_state.LevelError {
			fmt.Fprintf(os.Stderr, "error: %s\n", n.Message)
			continue
		}
		fmt.Fprintln(a.out, n.Message)
	}
}

// connect bootstraps without keeping the progress stream.
func (a *app) connect(ctx context.Context) *ytdl_client.Sync {
	s := a.client.Bootstrap(ctx)
	s.Close()
	return s
}

func (a *app) printJobs(jobs []ytdl_api.DownloadJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(a.out, "No downloads.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MEDIA ID\tSTATUS\tFORMAT\tDURATION\tSIZE\tTITLE")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.MediaID, statusText(job), job.MediaFormat, ytdl_api.FormatDuration(job.Duration), ytdl_api.JobFilesize(job), job.Title)
	}
	w.Flush()
}

func statusText(job ytdl_api.DownloadJob) string {
	if job.Status.InProgress() {
		return fmt.Sprintf("%s %d%%", job.Status, job.Progress)
	}
	return string(job.Status)
}

func runWatch(ctx context.Context, a *app, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessions := make(chan dashboard.Session, 1)
	streamDone := make(chan struct{})
	go func() {
		s := a.client.Bootstrap(ctx)
		sessions <- dashboard.Session{APIVersion: s.APIVersion}
		close(sessions)
		<-s.Done()
		close(streamDone)
	}()
	state := a.client.State()
	return dashboard.Run(ctx, dashboard.Deps{
		Jobs:       a.client.Registry(),
		Loading:    state.Loading,
		Notices:    state.Notices,
		Actions:    a.client,
		Session:    sessions,
		StreamDone: streamDone,
	})
}

func runList(ctx context.Context, a *app, args []string) error {
	s := a.connect(ctx)
	if !s.JobsLoaded {
		fmt.Fprintln(a.out, "(cached list, server not reachable)")
	}
	registry := a.client.Registry()
	a.printJobs(registry.View())
	if st := registry.Stats(); st.Total > 0 {
		fmt.Fprintf(a.out, "\n%d downloads: %d active, %d finished, %d failed\n", st.Total, st.Active, st.Finished, st.Failed)
	}
	return nil
}

func runFollow(ctx context.Context, a *app, args []string) error {
	s := a.client.Bootstrap(ctx)
	defer s.Close()
	registry := a.client.Registry()
	a.printJobs(registry.View())
	a.printNotices()
	if s.Channel == nil {
		return errors.New("progress stream is not available")
	}

	last := map[ytdl_api.MediaID]string{}
	for _, job := range registry.View() {
		last[job.MediaID] = statusText(job)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			fmt.Fprintln(a.out, "stream ended")
			return s.Err()
		case <-registry.Changes():
			for _, job := range registry.View() {
				text := statusText(job)
				if last[job.MediaID] != text {
					fmt.Fprintf(a.out, "%s  %-16s %s\n", job.MediaID, text, job.Title)
					last[job.MediaID] = text
				}
			}
			a.printNotices()
		}
	}
}

func runPreview(ctx context.Context, a *app, args []string) error {
	url, err := singleArg("preview", args)
	if err != nil {
		return err
	}
	p, err := a.client.Preview(ctx, url)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Title:    %s\nDuration: %s\nFormats:  %s\n", p.Title, ytdl_api.FormatDuration(p.Duration), joinFormats(p.MediaFormats))
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tMIMETYPE\tQUALITY")
	for _, st := range p.VideoStreams {
		fmt.Fprintf(w, "video\t%s\t%s\t%s\n", st.ID, st.Mimetype, st.Quality)
	}
	for _, st := range p.AudioStreams {
		fmt.Fprintf(w, "audio\t%s\t%s\t%s\n", st.ID, st.Mimetype, st.Quality)
	}
	return w.Flush()
}

func joinFormats(formats []ytdl_api.MediaFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

// parseEnqueueArgs parses the enqueue flags. The source URL is taken from
// -url or the single positional argument. "-" leaves a stream to the preview
// defaults; an explicit empty id drops that stream.
func parseEnqueueArgs(args []string) (url string, video, audio, format *string, err error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	urlFlag := fs.String("url", "", "source URL")
	video = fs.String("video", "-", "video stream id (default: first offered, empty for none)")
	audio = fs.String("audio", "-", "audio stream id (default: first offered, empty for none)")
	format = fs.String("format", "", "media format: mp4, mp3 or wav (default: first offered)")
	if err = fs.Parse(args); err != nil {
		return "", nil, nil, nil, err
	}
	if *urlFlag != "" {
		if fs.NArg() > 0 {
			return "", nil, nil, nil, errors.New("enqueue takes either -url or one argument, not both")
		}
		return *urlFlag, video, audio, format, nil
	}
	url, err = singleArg("enqueue", fs.Args())
	return url, video, audio, format, err
}

func runEnqueue(ctx context.Context, a *app, args []string) error {
	url, video, audio, format, err := parseEnqueueArgs(args)
	if err != nil {
		return err
	}
	a.connect(ctx)
	p, err := a.client.Preview(ctx, url)
	if err != nil {
		return err
	}

	opts := ytdl_client.DefaultEnqueueOptions(p)
	if *format != "" {
		opts = ytdl_client.DefaultEnqueueOptions(&ytdl_api.Preview{
			AudioStreams: p.AudioStreams,
			VideoStreams: p.VideoStreams,
			MediaFormats: []ytdl_api.MediaFormat{ytdl_api.MediaFormat(*format)},
		})
	}
	if *video != "-" {
		opts.VideoStreamID = *video
	}
	if *audio != "-" {
		opts.AudioStreamID = *audio
	}
	if err := a.client.Enqueue(ctx, opts); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Enqueued %q as %s\n", p.Title, opts.MediaFormat)
	a.printJobs(a.client.Registry().View())
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	id, err := singleArg("delete", args)
	if err != nil {
		return err
	}
	a.connect(ctx)
	return a.client.Delete(ctx, ytdl_api.MediaID(id))
}

func runRetry(ctx context.Context, a *app, args []string) error {
	id, err := singleArg("retry", args)
	if err != nil {
		return err
	}
	a.connect(ctx)
	if err := a.client.Retry(ctx, ytdl_api.MediaID(id)); err != nil {
		return err
	}
	if job, ok := a.client.Registry().Get(ytdl_api.MediaID(id)); ok {
		fmt.Fprintf(a.out, "%s  %s\n", id, statusText(job))
	}
	return nil
}

func runFetch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	output := fs.String("output", a.cfg.DownloadDir, "directory to save the file in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := singleArg("fetch", fs.Args())
	if err != nil {
		return err
	}
	a.connect(ctx)

	bars := newFetchProgress(ctx, os.Stderr)
	path, err := a.client.Fetch(ctx, ytdl_api.MediaID(id),
		ytdl_client.WithFetchDir(*output),
		ytdl_client.WithProgress(bars.wrap),
	)
	bars.finish(err)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s\n", path)
	return nil
}

func runVersion(ctx context.Context, a *app, args []string) error {
	fmt.Fprintf(a.out, "ytdl client %s\n", Version)
	info, err := a.client.ServerVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", ytdl_api.UserMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "API %s\n", info.APIVersion)
	if info.YoutubeDLVersion != "" {
		fmt.Fprintf(a.out, "youtube-dl %s\n", info.YoutubeDLVersion)
	}
	if len(info.MediaFormats) > 0 {
		fmt.Fprintf(a.out, "formats %s\n", joinFormats(info.MediaFormats))
	}
	return nil
}

func runResetIdentity(ctx context.Context, a *app, args []string) error {
	if err := a.client.ResetIdentity(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Client identity cleared. A new one is issued on the next start.")
	return nil
}
