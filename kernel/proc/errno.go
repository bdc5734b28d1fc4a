package proc

import (
	"errors"
	"fmt"

	"github.com/sarchlab/kmem/mem/vm"
)

// Errno is the error code a process carries after a failed kernel operation.
type Errno int

// Error codes that the memory subsystem can leave on a process.
const (
	ENOERR Errno = 0
	ENOMEM Errno = 12
	EINVAL Errno = 22
)

func (e Errno) String() string {
	switch e {
	case ENOERR:
		return "ENOERR"
	case ENOMEM:
		return "ENOMEM"
	case EINVAL:
		return "EINVAL"
	default:
		return fmt.Sprintf("Errno(%d)", int(e))
	}
}

// ErrnoFor returns the error code that reports err to a process.
func ErrnoFor(err error) Errno {
	switch {
	case err == nil:
		return ENOERR
	case errors.Is(err, vm.ErrOutOfMemory):
		return ENOMEM
	default:
		return EINVAL
	}
}
