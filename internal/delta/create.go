package delta

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

// CreateObject brings a new object into the schema.
type CreateObject struct {
	ObjectCommandBase

	// IfNotExists makes creation of an already existing object a
	// no-op instead of an error.
	IfNotExists bool
}

func (c *CreateObject) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	if err := c.validateLegalCommand(ctx); err != nil {
		return nil, err
	}
	release := ctx.Push(c)
	defer release()

	if s.Has(c.Kind, c.ClassName) {
		if c.IfNotExists {
			discardFromParent(ctx, c)
			return s, nil
		}
		return nil, serr.New(serr.ErrObjectExists, "schema object already exists").
			With("kind", c.Kind.String()).
			With("name", c.ClassName.String())
	}

	s, err := c.createBegin(ctx, s)
	if err != nil {
		return nil, err
	}
	if s, err = applyInnards(ctx, s, &c.CommandBase); err != nil {
		return nil, err
	}
	return c.createFinalize(ctx, s)
}

// createBegin applies prerequisites, materializes the object from the
// attribute table, and places it in the snapshot. Prerequisites run
// first so that objects they introduce are visible to attribute
// resolution.
func (c *CreateObject) createBegin(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	s, err := applyPrerequisites(ctx, s, &c.CommandBase)
	if err != nil {
		return nil, err
	}

	if !ctx.TestMode && c.Kind != schema.KindModule {
		if c.ClassName.Module == "" {
			return nil, serr.New(serr.ErrUnqualifiedName, "object name must be module-qualified").
				With("name", c.ClassName.String())
		}
		if !s.Has(schema.KindModule, schema.ParseName(c.ClassName.Module)) {
			return nil, serr.New(serr.ErrObjectNotFound, "module does not exist").
				With("module", c.ClassName.Module).
				With("name", c.ClassName.String())
		}
		if c.ClassName.IsOwned() && !s.Has(schema.KindAny, c.ClassName.Owner()) {
			return nil, serr.New(serr.ErrObjectNotFound, "owner object does not exist").
				With("owner", c.ClassName.Owner().String()).
				With("name", c.ClassName.String())
		}
	}

	attrs, err := c.resolvedAttributes(ctx, s, c)
	if err != nil {
		return nil, err
	}

	// An externally minted id travels as an attribute and is consumed
	// here; it never reaches the field store.
	o := schema.NewObject(c.Kind, c.ClassName)
	if id, ok := attrs["id"].(uuid.UUID); ok {
		o = schema.NewObjectWithID(c.Kind, c.ClassName, id)
	}
	delete(attrs, "id")
	s, err = s.Add(o)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if s, err = s.Update(o, attrs); err != nil {
			return nil, err
		}
	}
	c.scls, err = s.GetByID(o.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *CreateObject) createFinalize(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	return finalizeAffectedRefs(ctx, s, c)
}

func (c *CreateObject) String() string {
	return fmt.Sprintf("<CreateObject %s %s>", c.Kind, c.ClassName)
}

// applyPrerequisites applies the prerequisite commands, skipping
// attribute setters: those resolve through the attribute table.
func applyPrerequisites(ctx *Context, s *schema.Schema, b *CommandBase) (*schema.Schema, error) {
	var err error
	// Iterate a copy: an if_not_exists child may discard itself from
	// the live list mid-walk.
	prereqs := append([]Command(nil), b.Prerequisites()...)
	for _, cmd := range prereqs {
		if _, ok := cmd.(*SetAttribute); ok {
			continue
		}
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// applyInnards applies the main child commands, skipping attribute
// setters and skipping prerequisites: the former were consumed into the
// attribute table and the latter already ran during the begin phase.
func applyInnards(ctx *Context, s *schema.Schema, b *CommandBase) (*schema.Schema, error) {
	var err error
	for _, cmd := range b.Subcommands(false) {
		if _, ok := cmd.(*SetAttribute); ok {
			continue
		}
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// discardFromParent removes a short-circuited command from its
// enclosing command so later replays of the tree skip it. Canonical
// trees are already fully expanded and stay untouched.
func discardFromParent(ctx *Context, cmd Command) {
	if ctx.Canonical() {
		return
	}
	if parent, ok := ctx.ParentOp(); ok {
		parent.base().Discard(cmd)
	}
}
