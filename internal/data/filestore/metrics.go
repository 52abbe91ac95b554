package filestore

import (
	"pyscope/internal/core/errors"
	"pyscope/internal/shared/observability"
)

const (
	opRead   = "read"
	opWrite  = "write"
	opDelete = "delete"
	opList   = "list"
)

func record(backend, op string) {
	observability.StoreOpsTotal.WithLabelValues(backend, op).Inc()
}

func notFound(owner, filename string) error {
	err := errors.AddContext(errors.Newf(errors.CodeNotFound, "file %q not found", filename), errors.CtxOwner, owner)
	return errors.AddContext(err, errors.CtxFilename, filename)
}

// storeError tags a backend failure with the key it concerned.
func storeError(err error, backend, op, owner string) error {
	if errors.CodeOf(err) == "" {
		err = errors.Wrap(err, errors.CodeInternal, op+" failed")
	}
	err = errors.AddContext(err, errors.CtxBackend, backend)
	return errors.AddContext(err, errors.CtxOwner, owner)
}
