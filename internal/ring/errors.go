package ring

import "github.com/mqnic-project/mqnicgo/internal/errs"

func errInvalidSize(op string, size int) *errs.Error {
	return errs.New(op, errs.CodeConfiguration, "ring size must be a positive power of two")
}
