package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

var errUploadExited = errors.New("upload already exited")

// s3Writer pipes writes into a multipart upload running in the background
type s3Writer struct {
	writer *io.PipeWriter
	done   chan struct{}
	err    error
}

var (
	_ io.WriteCloser = (*s3Writer)(nil)
	_ Aborter        = (*s3Writer)(nil)
)

func newS3Writer(uploader s3manageriface.UploaderAPI, options *s3manager.UploadInput) *s3Writer {
	reader, writer := io.Pipe()

	input := *options
	input.Body = reader

	w := &s3Writer{writer: writer, done: make(chan struct{})}
	go func() {
		_, err := uploader.Upload(&input)
		// unblocks pending writes if the upload stopped reading early
		reader.CloseWithError(errUploadExited)
		w.err = err
		close(w.done)
	}()
	return w
}

// Write queues p to be uploaded
func (w *s3Writer) Write(p []byte) (int, error) {
	select {
	case <-w.done:
		if w.err != nil {
			return 0, fmt.Errorf("upload exited with error: %w", w.err)
		}
		return 0, errUploadExited
	default:
	}
	return w.writer.Write(p)
}

// Close ends the stream and waits for the upload to complete
func (w *s3Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		return err
	}
	<-w.done
	return w.err
}

// Abort fails the stream with cause and waits for the upload to stop, no object is created
func (w *s3Writer) Abort(cause error) {
	_ = w.writer.CloseWithError(cause)
	<-w.done
}
