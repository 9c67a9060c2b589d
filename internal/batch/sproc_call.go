package batch

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/apereiratl/marten/pkg/marten"
)

type sprocArg struct {
	name   string
	value  any
	dbType marten.DbType
	size   int
}

// SprocCall is a stored procedure invocation rendered with named arguments:
//
//	select schema.fn(name := @p0, other := @p1)
//
// Argument methods return the call for chaining. The first invalid argument
// is remembered and reported by Err and by the batch's BuildCommand.
type SprocCall struct {
	parent   *Command
	function marten.DbObjectName
	args     []sprocArg
	docType  reflect.Type
	err      error
}

func newSprocCall(parent *Command, function marten.DbObjectName) *SprocCall {
	return &SprocCall{parent: parent, function: function}
}

// Function returns the procedure being called.
func (c *SprocCall) Function() marten.DbObjectName { return c.function }

// Err returns the first invalid argument error, if any.
func (c *SprocCall) Err() error { return c.err }

// ForDocument records the document type the call touches.
func (c *SprocCall) ForDocument(t reflect.Type) *SprocCall {
	c.docType = t
	return c
}

// DocumentType returns the type set by ForDocument, or nil.
func (c *SprocCall) DocumentType() reflect.Type { return c.docType }

// Param adds an argument whose database type is inferred from the value.
func (c *SprocCall) Param(name string, value any) *SprocCall {
	dbType, _ := marten.LookupDbType(value)
	return c.ParamTyped(name, value, dbType)
}

// ParamTyped adds an argument with an explicit database type. Enum-like
// values follow the batch's enum storage and UUIDs are always sent as uuid,
// whatever dbType says.
func (c *SprocCall) ParamTyped(name string, value any, dbType marten.DbType) *SprocCall {
	value, dbType = c.normalize(value, dbType)
	return c.add(sprocArg{name: name, value: value, dbType: dbType})
}

// ParamSized adds an argument with an explicit type and size. The value is
// sent as given.
func (c *SprocCall) ParamSized(name string, value any, dbType marten.DbType, size int) *SprocCall {
	if size < 0 {
		c.fail(fmt.Errorf("argument %q: size %d is negative: %w", name, size, marten.ErrInvalidArgument))
		return c
	}
	return c.add(sprocArg{name: name, value: value, dbType: dbType, size: size})
}

// JSONEntity serializes v with the batch's serializer and adds it as jsonb.
func (c *SprocCall) JSONEntity(name string, v any) *SprocCall {
	json, err := c.parent.serializer.ToJSON(v)
	if err != nil {
		c.fail(fmt.Errorf("argument %q: %w", name, err))
		return c
	}
	return c.JSONBody(name, json)
}

// JSONBody adds already serialized JSON as jsonb.
func (c *SprocCall) JSONBody(name string, json string) *SprocCall {
	return c.add(sprocArg{name: name, value: json, dbType: marten.DbTypeJSONB})
}

// JSONBodies adds already serialized JSON documents as jsonb[].
func (c *SprocCall) JSONBodies(name string, bodies []string) *SprocCall {
	return c.add(sprocArg{name: name, value: bodies, dbType: marten.DbTypeJSONB.Array()})
}

func (c *SprocCall) add(arg sprocArg) *SprocCall {
	if arg.name == "" {
		c.fail(fmt.Errorf("argument name is required: %w", marten.ErrInvalidArgument))
		return c
	}
	c.args = append(c.args, arg)
	c.parent.built = nil
	return c
}

func (c *SprocCall) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *SprocCall) normalize(value any, dbType marten.DbType) (any, marten.DbType) {
	switch v := value.(type) {
	case uuid.UUID, *uuid.UUID:
		return v, marten.DbTypeUUID
	case []uuid.UUID:
		return v, marten.DbTypeUUID.Array()
	}

	if !isEnum(value) {
		return value, dbType
	}
	if c.parent.enumStorage == marten.EnumAsString {
		return value.(fmt.Stringer).String(), marten.DbTypeVarchar
	}

	rv := reflect.ValueOf(value)
	if rv.CanInt() {
		return rv.Int(), marten.DbTypeInteger
	}
	return rv.Uint(), marten.DbTypeInteger
}

// isEnum reports whether value is a named integer type with a String method
// and no registered database mapping of its own.
func isEnum(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.(fmt.Stringer); !ok {
		return false
	}
	if _, mapped := marten.LookupDbType(value); mapped {
		return false
	}

	switch reflect.TypeOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// ConfigureCommand renders the call into the batch's current statement.
func (c *SprocCall) ConfigureCommand(b *marten.CommandBuilder) {
	b.Appendf("select %s(", c.function.QualifiedName())
	for i, arg := range c.args {
		if i > 0 {
			b.Append(", ")
		}
		p := b.AddParameter(arg.value, arg.dbType)
		if arg.size > 0 {
			p.Size = arg.size
		}
		b.Appendf("%s := %s", arg.name, p.Placeholder())
	}
	b.Append(")")
}

var _ marten.StorageOperation = (*SprocCall)(nil)
