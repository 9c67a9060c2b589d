package marten

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var builtinTypes = map[reflect.Type]DbType{
	reflect.TypeOf(""):                DbTypeVarchar,
	reflect.TypeOf(false):             DbTypeBoolean,
	reflect.TypeOf(int(0)):            DbTypeBigint,
	reflect.TypeOf(int16(0)):          DbTypeSmallint,
	reflect.TypeOf(int32(0)):          DbTypeInteger,
	reflect.TypeOf(int64(0)):          DbTypeBigint,
	reflect.TypeOf(float32(0)):        DbTypeReal,
	reflect.TypeOf(float64(0)):        DbTypeDouble,
	reflect.TypeOf(time.Time{}):       DbTypeTimestampTZ,
	reflect.TypeOf(time.Duration(0)):  DbTypeInterval,
	reflect.TypeOf(uuid.UUID{}):       DbTypeUUID,
	reflect.TypeOf([]byte(nil)):       DbTypeBytea,
	reflect.TypeOf(json.RawMessage{}): DbTypeJSONB,
}

// typeRegistry maps Go types to database types. Custom mappings may only be
// registered before the registry is sealed; lookups after that never lock.
type typeRegistry struct {
	mu     sync.Mutex
	custom map[reflect.Type]DbType
	sealed bool

	once   sync.Once
	frozen atomic.Pointer[map[reflect.Type]DbType]
}

var registry = &typeRegistry{custom: make(map[reflect.Type]DbType)}

// RegisterType maps a Go type to a database type. It fails once
// SealTypeRegistry has run, which happens when the first session is created.
func RegisterType(t reflect.Type, dbType DbType) error {
	if t == nil || dbType == DbTypeUnknown {
		return fmt.Errorf("type and database type are required: %w", ErrInvalidArgument)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.sealed {
		return fmt.Errorf("cannot map %v to %s: %w", t, dbType, ErrTypeRegistrySealed)
	}
	registry.custom[t] = dbType
	return nil
}

// SealTypeRegistry ends the registration phase. Safe to call more than once.
func SealTypeRegistry() {
	registry.once.Do(func() {
		registry.mu.Lock()
		defer registry.mu.Unlock()

		frozen := make(map[reflect.Type]DbType, len(builtinTypes)+len(registry.custom))
		for t, db := range builtinTypes {
			frozen[t] = db
		}
		for t, db := range registry.custom {
			frozen[t] = db
		}
		registry.frozen.Store(&frozen)
		registry.sealed = true
	})
}

// LookupDbType returns the database type for a value's Go type. Slices map
// to the array of their element type, pointers to their element type.
func LookupDbType(value any) (DbType, bool) {
	if value == nil {
		return DbTypeUnknown, false
	}
	return LookupDbTypeFor(reflect.TypeOf(value))
}

// LookupDbTypeFor is LookupDbType keyed by type.
func LookupDbTypeFor(t reflect.Type) (DbType, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if db, ok := lookup(t); ok {
		return db, true
	}

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		if db, ok := lookup(t.Elem()); ok {
			return db.Array(), true
		}
	}
	return DbTypeUnknown, false
}

func lookup(t reflect.Type) (DbType, bool) {
	if frozen := registry.frozen.Load(); frozen != nil {
		db, ok := (*frozen)[t]
		return db, ok
	}

	registry.mu.Lock()
	db, ok := registry.custom[t]
	registry.mu.Unlock()
	if ok {
		return db, true
	}
	db, ok = builtinTypes[t]
	return db, ok
}
