// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"code.hybscloud.com/wspipe"
	"golang.org/x/net/http2"
)

// memFile is an in-memory file provider.
type memFile struct {
	*bytes.Reader
	closed int
}

func newMemFile(b []byte) *memFile { return &memFile{Reader: bytes.NewReader(b)} }

func (f *memFile) Close() error {
	f.closed++
	return nil
}

// driveFile services writable events until the transaction completes.
func driveFile(t *testing.T, c *wspipe.Conn) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if err := c.ServiceWritable(); err != nil {
			t.Fatalf("service writable: %v", err)
		}
		if !c.FileTransactionActive() {
			return
		}
	}
	t.Fatalf("file transaction did not complete")
}

func TestFilePump_PacketSizedFragments(t *testing.T) {
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i)
	}
	f := newMemFile(content)
	tw := &acceptWriter{}
	completions := 0

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving,
		wspipe.WithTxPacketSize(300),
		wspipe.WithOnFileCompletion(func(*wspipe.Conn) error {
			completions++
			return nil
		}))
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.BeginFileTransaction(f, int64(len(content))); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)

	if !bytes.Equal(tw.buf.Bytes(), content) {
		t.Fatalf("wire diverges from file (len=%d want=%d)", tw.buf.Len(), len(content))
	}
	if completions != 1 {
		t.Fatalf("completions=%d want=1", completions)
	}
	if f.closed != 1 {
		t.Fatalf("file closed %d times", f.closed)
	}
	if c.State() != wspipe.StateHTTP {
		t.Fatalf("state=%v want=%v", c.State(), wspipe.StateHTTP)
	}
}

// Repeated writable events after completion must not re-fire the
// completion callback.
func TestFilePump_CompletionFiresOnce(t *testing.T) {
	f := newMemFile([]byte("tiny"))
	tw := &acceptWriter{}
	completions := 0

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving,
		wspipe.WithOnFileCompletion(func(*wspipe.Conn) error {
			completions++
			return nil
		}))
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.BeginFileTransaction(f, 4); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)
	for i := 0; i < 5; i++ {
		if err := c.ServiceWritable(); err != nil {
			t.Fatalf("idle service: %v", err)
		}
	}
	if completions != 1 {
		t.Fatalf("completions=%d want=1", completions)
	}
}

func TestFilePump_MultipartRanges(t *testing.T) {
	content := []byte("abcdefghijklmnopqrst") // 20 bytes
	f := newMemFile(content)
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	err = c.BeginFileTransaction(f, 20,
		wspipe.WithRanges(wspipe.ByteRange{Start: 0, End: 3}, wspipe.ByteRange{Start: 10, End: 13}),
		wspipe.WithMultipartContentType("text/plain"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)

	want := "_lws\r\nContent-Type: text/plain\r\nContent-Range: bytes 0-3/20\r\n\r\nabcd" +
		"_lws\r\nContent-Type: text/plain\r\nContent-Range: bytes 10-13/20\r\n\r\nklmn" +
		"_lws\r\n"
	if got := tw.buf.String(); got != want {
		t.Fatalf("body=%q\nwant=%q", got, want)
	}
}

func TestFilePump_SingleRangeHasNoBoundary(t *testing.T) {
	f := newMemFile([]byte("abcdefghij"))
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.BeginFileTransaction(f, 10, wspipe.WithRanges(wspipe.ByteRange{Start: 2, End: 5})); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)
	if got := tw.buf.String(); got != "cdef" {
		t.Fatalf("body=%q want=%q", got, "cdef")
	}
}

func TestFilePump_ChunkedTransferEncoding(t *testing.T) {
	f := newMemFile([]byte("hello"))
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.BeginFileTransaction(f, 5, wspipe.WithChunked()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)
	if got := tw.buf.String(); got != "5\r\nhello\r\n0\r\n\r\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestFilePump_ChunkedInterpreterGrowsChunk(t *testing.T) {
	f := newMemFile([]byte("$NAME$"))
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	err = c.BeginFileTransaction(f, 6,
		wspipe.WithChunked(),
		wspipe.WithInterpreter(func(args *wspipe.ProcessArgs) error {
			out := bytes.Replace(args.P[:args.Len], []byte("$NAME$"), []byte("world, expanded"), 1)
			if len(out) > args.MaxLen {
				return fmt.Errorf("grew past MaxLen")
			}
			args.Len = copy(args.P, out)
			return nil
		}))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)
	if got := tw.buf.String(); got != "f\r\nworld, expanded\r\n0\r\n\r\n" {
		t.Fatalf("body=%q", got)
	}
}

// A choking transport never corrupts or drops file bytes: residue drains
// ahead of fresh fragments across writable events.
func TestFilePump_ShortWritesResync(t *testing.T) {
	content := make([]byte, 500)
	for i := range content {
		content[i] = byte(255 - i%251)
	}
	f := newMemFile(content)
	tw := &acceptWriter{accepts: []int{37, 0, 100, 3, 0, 250}}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP1Serving, wspipe.WithTxPacketSize(200))
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.BeginFileTransaction(f, 500); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)
	if !bytes.Equal(tw.buf.Bytes(), content) {
		t.Fatalf("wire diverges from file (len=%d want=500)", tw.buf.Len())
	}
}

func TestFilePump_H2StreamEndsOnCompletion(t *testing.T) {
	content := bytes.Repeat([]byte{'z'}, 100)
	f := newMemFile(content)
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP2Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	c.SetStreamID(5)
	c.AddTxCredit(1 << 16)
	if err := c.BeginFileTransaction(f, 100); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)

	fr := http2.NewFramer(io.Discard, bytes.NewReader(tw.buf.Bytes()))
	var data []byte
	ended := false
	for {
		fm, err := fr.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		df, ok := fm.(*http2.DataFrame)
		if !ok {
			t.Fatalf("frame type %T", fm)
		}
		data = append(data, df.Data()...)
		ended = df.StreamEnded()
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("reassembled body diverges (len=%d)", len(data))
	}
	if !ended {
		t.Fatalf("last DATA frame missing END_STREAM")
	}
}

func TestFilePump_ContentLengthPromotesFinal(t *testing.T) {
	content := bytes.Repeat([]byte{'q'}, 64)
	f := newMemFile(content)
	tw := &acceptWriter{}

	svc := wspipe.NewService()
	c, err := svc.NewConn(tw, wspipe.HTTP2Serving)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	c.SetStreamID(7)
	c.AddTxCredit(1 << 16)
	if err := c.BeginFileTransaction(f, 64, wspipe.WithContentLength(64)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	driveFile(t, c)

	df := readDataFrame(t, tw.buf.Bytes())
	if !df.StreamEnded() {
		t.Fatalf("END_STREAM not set when content accounting ran out")
	}
}
