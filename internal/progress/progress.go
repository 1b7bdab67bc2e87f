// Package progress renders mpb bars for chunking and verification runs.
package progress

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Reader counts bytes read into bar. A nil bar is allowed.
type Reader struct {
	r   io.Reader
	bar *mpb.Bar
}

func NewReader(r io.Reader, bar *mpb.Bar) *Reader {
	return &Reader{r: r, bar: bar}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.bar != nil {
		pr.bar.IncrBy(n)
	}
	return n, err
}

// Writer counts bytes written into bar. A nil bar is allowed.
type Writer struct {
	w   io.Writer
	bar *mpb.Bar
}

func NewWriter(w io.Writer, bar *mpb.Bar) *Writer {
	return &Writer{w: w, bar: bar}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 && pw.bar != nil {
		pw.bar.IncrBy(n)
	}
	return n, err
}

// Counter counts bytes without a bar.
type Counter struct {
	Count int64
}

func (c *Counter) Write(p []byte) (int, error) {
	c.Count += int64(len(p))
	return len(p), nil
}

// NewContainer returns nil when stderr is not a terminal, which disables
// every bar added through this package.
func NewContainer() *mpb.Progress {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
}

// AddChunkBar tracks source bytes consumed. total may be 0 when the size is
// unknown.
func AddChunkBar(p *mpb.Progress, name string, total int64) *mpb.Bar {
	if p == nil {
		return nil
	}
	return p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.Name(" chunked"),
			decor.OnComplete(decor.Name(""), " [DONE]"),
		),
	)
}

func AddVerifyBar(p *mpb.Progress, name string, total int64) *mpb.Bar {
	if p == nil {
		return nil
	}
	return p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.Percentage(),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.CountersKibiByte("% .2f / % .2f"),
				"VERIFIED",
			),
		),
	)
}

// Finish marks an open-ended bar complete.
func Finish(bar *mpb.Bar) {
	if bar == nil {
		return
	}
	bar.SetTotal(-1, true)
}

// Abort removes an unfinished bar so the container can shut down.
func Abort(bar *mpb.Bar) {
	if bar == nil {
		return
	}
	bar.Abort(true)
}
