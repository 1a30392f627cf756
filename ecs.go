package splat

import (
	"fmt"
	"reflect"
	"slices"
)

type EntityId uint64

// Ecs is a flat entity table. Components are stored by struct type, one per
// type and entity, and queries visit entities in insertion order. Components
// passed by pointer are copied.
type Ecs struct {
	lastId   EntityId
	freeIds  []EntityId
	entities map[EntityId]map[reflect.Type]any
	order    []EntityId
}

func MakeEcs() Ecs {
	return Ecs{
		entities: make(map[EntityId]map[reflect.Type]any),
	}
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	return ecs.insertEntity(ecs.nextEntityId(), components...)
}

func (ecs *Ecs) insertEntity(entityId EntityId, components ...any) EntityId {
	if _, ok := ecs.entities[entityId]; ok {
		panic(fmt.Sprintf("entity %d already exists", entityId))
	}
	ecs.entities[entityId] = make(map[reflect.Type]any, len(components))
	ecs.order = append(ecs.order, entityId)
	ecs.addComponents(entityId, components...)
	return entityId
}

func (ecs *Ecs) removeEntity(entityId EntityId) {
	if _, ok := ecs.entities[entityId]; !ok {
		return
	}
	delete(ecs.entities, entityId)
	if i := slices.Index(ecs.order, entityId); i >= 0 {
		ecs.order = slices.Delete(ecs.order, i, i+1)
	}
	ecs.freeIds = append(ecs.freeIds, entityId)
}

func (ecs *Ecs) addComponents(entityId EntityId, components ...any) {
	row, ok := ecs.entities[entityId]
	if !ok {
		panic(fmt.Sprintf("entity %d does not exist", entityId))
	}
	for _, c := range components {
		v := reflect.ValueOf(c)
		if v.Kind() == reflect.Pointer && !v.IsNil() {
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			panic(fmt.Sprintf("component must be a struct, got %T", c))
		}
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		row[v.Type()] = ptr.Interface()
	}
}

func (ecs *Ecs) removeComponents(entityId EntityId, components ...any) {
	row, ok := ecs.entities[entityId]
	if !ok {
		return
	}
	for _, c := range components {
		t := reflect.TypeOf(c)
		if t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		delete(row, t)
	}
}

func (ecs *Ecs) component(entityId EntityId, t reflect.Type) (any, bool) {
	row, ok := ecs.entities[entityId]
	if !ok {
		return nil, false
	}
	c, ok := row[t]
	return c, ok
}

func (ecs *Ecs) hasEntity(entityId EntityId) bool {
	_, ok := ecs.entities[entityId]
	return ok
}

func (ecs *Ecs) len() int {
	return len(ecs.entities)
}

func (ecs *Ecs) nextEntityId() EntityId {
	if n := len(ecs.freeIds); n > 0 {
		id := ecs.freeIds[n-1]
		ecs.freeIds = ecs.freeIds[:n-1]
		return id
	}
	ecs.lastId++
	return ecs.lastId
}
