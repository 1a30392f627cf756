package splat

import (
	"reflect"
	"slices"
)

type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func lookup[T any](row map[reflect.Type]any) (*T, bool) {
	c, ok := row[typeOf[T]()]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}

// Map calls m for every entity holding A until m returns false.
func (q Query1[A]) Map(m func(EntityId, *A) bool) {
	for _, eid := range slices.Clone(q.ecs.order) {
		row, ok := q.ecs.entities[eid]
		if !ok {
			continue
		}
		a, ok := lookup[A](row)
		if !ok {
			continue
		}
		if !m(eid, a) {
			return
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool) {
	for _, eid := range slices.Clone(q.ecs.order) {
		row, ok := q.ecs.entities[eid]
		if !ok {
			continue
		}
		a, okA := lookup[A](row)
		b, okB := lookup[B](row)
		if !okA || !okB {
			continue
		}
		if !m(eid, a, b) {
			return
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool) {
	for _, eid := range slices.Clone(q.ecs.order) {
		row, ok := q.ecs.entities[eid]
		if !ok {
			continue
		}
		a, okA := lookup[A](row)
		b, okB := lookup[B](row)
		c, okC := lookup[C](row)
		if !okA || !okB || !okC {
			continue
		}
		if !m(eid, a, b, c) {
			return
		}
	}
}

// Count returns how many entities hold A.
func (q Query1[A]) Count() int {
	n := 0
	q.Map(func(EntityId, *A) bool {
		n++
		return true
	})
	return n
}

func (q Query2[A, B]) Count() int {
	n := 0
	q.Map(func(EntityId, *A, *B) bool {
		n++
		return true
	})
	return n
}
