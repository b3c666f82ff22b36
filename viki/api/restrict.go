package api

import (
	"github.com/vikget/vikget/errs"
	"github.com/vikget/vikget/internal/jsonmap"
)

// CheckRestrictions inspects a content object's blocking flags and returns
// the typed error for the first recognized truthy reason, in the flags'
// stored (document) order. Unrecognized reasons are ignored.
func CheckRestrictions(blocking jsonmap.Object) error {
	for _, flag := range blocking {
		if !jsonmap.Truthy(flag.Value) {
			continue
		}
		switch flag.Key {
		case "geo":
			return errs.ErrGeoBlocked
		case "paywall":
			return errs.ErrLoginRequired
		case "upcoming":
			return errs.ErrNotYetAvailable
		}
	}
	return nil
}
