package delta

import (
	"fmt"
	"sync"

	"github.com/pellucidb/pellucid/internal/schema"
)

// commandCtor builds an empty object command for one (action, kind)
// pair.
type commandCtor func() ObjectCommand

type cmdKey struct {
	action Action
	kind   schema.Kind
}

var (
	cmdMu       sync.RWMutex
	cmdRegistry = map[cmdKey]commandCtor{}
)

// RegisterCommand installs the constructor for an (action, kind) pair.
// Registering a pair twice is a programming error and panics.
func RegisterCommand(action Action, kind schema.Kind, ctor commandCtor) {
	cmdMu.Lock()
	defer cmdMu.Unlock()
	key := cmdKey{action: action, kind: kind}
	if _, dup := cmdRegistry[key]; dup {
		panic(fmt.Sprintf("delta: duplicate command registration for %s/%s", action, kind))
	}
	cmdRegistry[key] = ctor
}

// NewCommand builds the object command registered for an (action,
// kind) pair. Exact kind registrations win over the KindAny fallback.
func NewCommand(action Action, kind schema.Kind, name schema.Name) (ObjectCommand, error) {
	cmdMu.RLock()
	ctor, ok := cmdRegistry[cmdKey{action: action, kind: kind}]
	if !ok {
		ctor, ok = cmdRegistry[cmdKey{action: action, kind: schema.KindAny}]
	}
	cmdMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("delta: no command registered for %s/%s", action, kind)
	}
	cmd := ctor()
	b := cmd.objectBase()
	b.ClassName = name
	b.Kind = kind
	return cmd, nil
}

func init() {
	RegisterCommand(ActionCreate, schema.KindAny, func() ObjectCommand { return &CreateObject{} })
	RegisterCommand(ActionAlter, schema.KindAny, func() ObjectCommand { return &AlterObject{} })
	RegisterCommand(ActionDelete, schema.KindAny, func() ObjectCommand { return &DeleteObject{} })
	RegisterCommand(ActionRename, schema.KindAny, func() ObjectCommand { return &RenameObject{} })
	RegisterCommand(ActionRebase, schema.KindAny, func() ObjectCommand { return &RebaseObject{} })
}
