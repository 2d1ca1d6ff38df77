package policies

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrLockTimeout      = errors.New("policies: stay lock wait exceeded")
	ErrAddressNotFound  = errors.New("policies: address could not be geocoded")
	ErrImageUploadEmpty = errors.New("policies: empty image upload")
)

// StayLocker serialises writers per stay. The returned release func must be
// called exactly once.
type StayLocker interface {
	Lock(ctx context.Context, stayID string) (release func(), err error)
}

type Geocoder interface {
	Resolve(ctx context.Context, address string) (lat, lon float64, err error)
}

type ImageUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ImageStore interface {
	// Put stores the upload under the stay and returns its public URL.
	Put(ctx context.Context, stayID string, img ImageUpload) (string, error)
	Delete(ctx context.Context, url string) error
}

type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
