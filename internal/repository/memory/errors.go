package memory

import "github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"

func errDuplicate(what string) error {
	return errorutil.NewConflict(what+" already exists", nil)
}
