package main

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
)

// fetchProgress draws one byte counter bar per fetched file.
type fetchProgress struct {
	pc  *mpb.Progress
	bar *mpb.Bar
}

func newFetchProgress(ctx context.Context, out io.Writer) *fetchProgress {
	return &fetchProgress{
		pc: mpb.NewWithContext(ctx,
			mpb.WithOutput(out),
			mpb.WithWidth(64),
		),
	}
}

// wrap is a ytdl_client.ProgressFunc. A negative total leaves the bar open
// ended until finish.
func (p *fetchProgress) wrap(name string, total int64, r io.Reader) io.Reader {
	if total < 0 {
		total = 0
	}
	p.bar = p.pc.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(left(name, 30), decor.WC{W: 30 + 1, C: decor.DidentRight}),
			decor.CountersKibiByte("% .1f / % .1f", decor.WC{W: 22, C: decor.DidentRight}),
		),
		mpb.AppendDecorators(
			decor.AverageSpeed(decor.UnitKiB, " % .1f", decor.WC{W: 15, C: decor.DidentRight}),
		),
	)
	return p.bar.ProxyReader(r)
}

// finish completes or aborts the bar and waits for the last render.
func (p *fetchProgress) finish(err error) {
	if p.bar != nil {
		if err == nil {
			p.bar.SetTotal(p.bar.Current(), true)
		} else {
			p.bar.Abort(false)
		}
	}
	p.pc.Wait()
}

func left(s string, l int) string {
	r := []rune(s)
	if len(r) <= l {
		return s
	}
	return string(r[:l-1]) + "…"
}
