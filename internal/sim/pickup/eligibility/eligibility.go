// Package eligibility decides which items are collected and which containers are skipped.
package eligibility

import (
	"strings"

	"lootsweep.ai/internal/sim/host"
)

type Mode int

const (
	ModeDefault Mode = iota
	ModeWishlist
)

func (m Mode) String() string {
	if m == ModeWishlist {
		return "wishlist"
	}
	return "default"
}

type Rules struct {
	Mode       Mode
	MinQuality int
	AllowKeys  []string
	DenyTags   []string
}

type Evaluator struct {
	rules Rules
	allow map[string]struct{}
	deny  map[string]struct{}
}

func New(rules Rules) *Evaluator {
	e := &Evaluator{
		rules: rules,
		allow: make(map[string]struct{}, len(rules.AllowKeys)),
		deny:  make(map[string]struct{}, len(rules.DenyTags)),
	}
	for _, k := range rules.AllowKeys {
		e.allow[k] = struct{}{}
	}
	for _, t := range rules.DenyTags {
		e.deny[t] = struct{}{}
	}
	return e
}

func (e *Evaluator) Rules() Rules { return e.rules }

// Eligible decides one item. In wishlist mode a failed lookup is returned with false; callers treat
// it as an unresolvable type.
func (e *Evaluator) Eligible(item host.Item, wl host.Wishlist) (bool, error) {
	if e.rules.Mode == ModeWishlist {
		if item.TypeID <= 0 || wl == nil {
			return false, nil
		}
		info, err := wl.WishlistInfo(item.TypeID)
		if err != nil {
			return false, err
		}
		return info.IsManuallyWishlisted, nil
	}

	for _, tag := range item.Tags {
		if _, denied := e.deny[tag]; denied {
			return false, nil
		}
	}
	if item.IsBullet {
		return item.Quality >= e.rules.MinQuality, nil
	}
	_, allowed := e.allow[item.RawName]
	return allowed, nil
}

// ContainerExcluded reports whether name contains any of the excluded substrings, ignoring case.
func ContainerExcluded(name string, excluded []string) bool {
	lower := strings.ToLower(name)
	for _, s := range excluded {
		if s == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
