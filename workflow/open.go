package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Opener opens a store given the remainder of a locator after its scheme.
type Opener func(ctx context.Context, path string) (Store, error)

var (
	openersM sync.RWMutex
	openers  = map[string]Opener{}
)

// Register makes a store implementation available to Open() under the given
// locator scheme.
//
// It panics if scheme is empty or has already been registered.
func Register(scheme string, o Opener) {
	if scheme == "" {
		panic("scheme must not be empty")
	}

	openersM.Lock()
	defer openersM.Unlock()

	if _, ok := openers[scheme]; ok {
		panic(fmt.Sprintf("a workflow store has already been registered for '%s'", scheme))
	}

	openers[scheme] = o
}

// Schemes returns the sorted list of registered locator schemes.
func Schemes() []string {
	openersM.RLock()
	defer openersM.RUnlock()

	var schemes []string
	for s := range openers {
		schemes = append(schemes, s)
	}

	sort.Strings(schemes)

	return schemes
}

// Open opens the store identified by locator.
//
// A locator has the form "<scheme>:<path>", for example "memory:items.yaml".
func Open(ctx context.Context, locator string) (Store, error) {
	scheme, path, _ := strings.Cut(locator, ":")

	openersM.RLock()
	o, ok := openers[scheme]
	openersM.RUnlock()

	if !ok {
		return nil, fmt.Errorf(
			"unable to open workflow store '%s': unrecognised scheme '%s'",
			locator,
			scheme,
		)
	}

	s, err := o(ctx, strings.TrimPrefix(path, "//"))
	if err != nil {
		return nil, fmt.Errorf("unable to open workflow store '%s': %w", locator, err)
	}

	return s, nil
}
