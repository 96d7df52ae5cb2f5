// Package output opens the targets blocks are exported to: local files or s3 objects.
package output

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/fdymylja/blockexport/status"
)

// SchemeS3 prefixes targets stored as s3 objects
const SchemeS3 = "s3"

// Target is a parsed output location, either Path or Bucket and Key are set
type Target struct {
	Path   string
	Bucket string
	Key    string
}

// ParseTarget parses a local path or an s3://bucket/key url
func ParseTarget(target string) (Target, error) {
	if target == "" {
		return Target{}, errors.New("empty output target")
	}
	if !strings.HasPrefix(target, SchemeS3+"://") {
		return Target{Path: target}, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return Target{}, fmt.Errorf("invalid s3 target %s: %w", target, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Target{}, fmt.Errorf("invalid s3 target %s: bucket and key are required", target)
	}
	return Target{Bucket: u.Host, Key: key}, nil
}

// IsS3 reports if the target is an s3 object
func (t Target) IsS3() bool {
	return t.Bucket != ""
}

func (t Target) String() string {
	if t.IsS3() {
		return fmt.Sprintf("%s://%s/%s", SchemeS3, t.Bucket, t.Key)
	}
	return t.Path
}

// Aborter is implemented by outputs that can discard what was written instead of committing it on Close.
// Outputs opened for s3 implement it, local files keep what was written.
type Aborter interface {
	Abort(cause error)
}

// newSession is replaced in tests
var newSession = func() (*session.Session, error) {
	return session.NewSession()
}

// Open creates or truncates target for writing. Failures match status.ErrIO.
// Closing an s3 target waits for the upload to complete.
func Open(target string) (io.WriteCloser, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", status.ErrIO, err)
	}
	if !t.IsS3() {
		f, err := os.Create(t.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", status.ErrIO, err)
		}
		return f, nil
	}
	sess, err := newSession()
	if err != nil {
		return nil, fmt.Errorf("%w: aws session: %w", status.ErrIO, err)
	}
	return newS3Writer(s3manager.NewUploader(sess), &s3manager.UploadInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(t.Key),
	}), nil
}

// OpenReader opens target for reading. Failures match status.ErrIO.
func OpenReader(target string) (io.ReadCloser, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", status.ErrIO, err)
	}
	if !t.IsS3() {
		f, err := os.Open(t.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", status.ErrIO, err)
		}
		return f, nil
	}
	sess, err := newSession()
	if err != nil {
		return nil, fmt.Errorf("%w: aws session: %w", status.ErrIO, err)
	}
	obj, err := s3.New(sess).GetObject(&s3.GetObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(t.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", status.ErrIO, t, err)
	}
	return obj.Body, nil
}
