package rtree

import (
	"fmt"

	pkgerrors "github.com/skanjila/neo4j-spatial/pkg/errors"
)

func wrapHost(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.KindHostStoreError, "graph store operation failed", err)
}

func invariantf(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.KindInternalInvariant, fmt.Sprintf(format, args...))
}

func notIndexedf(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.KindNotIndexed, fmt.Sprintf(format, args...))
}

func encoderMismatch(err error) error {
	return pkgerrors.Wrap(pkgerrors.KindEncoderMismatch, "bad geometry encoding", err)
}
