package importer

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"dailybrief/internal/config"
)

var _ CalImporter = (*File)(nil)

type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Source() string {
	return config.SourceICSFile
}

func (f *File) Get(ctx context.Context) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	body, err := os.ReadFile(f.path)
	if err != nil {
		return Payload{}, errors.Wrapf(err, "error reading calendar file %s", f.path)
	}
	return Payload{Body: body}, nil
}
