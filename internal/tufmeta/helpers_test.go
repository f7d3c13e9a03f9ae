package tufmeta

import "github.com/jku/repository-playground/internal/set"

func setOf(items ...string) *set.Set[string] {
	return set.FromItems(items...)
}
