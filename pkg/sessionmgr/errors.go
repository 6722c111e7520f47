package sessionmgr

import "github.com/pkg/errors"

func wireErrNoSession(regionHandle uint64) error {
	return errors.Errorf("sessionmgr: no open session for region handle %d", regionHandle)
}
