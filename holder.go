package finder

import "iter"

// ItemHolder is a lazy, single-pass source of candidate items. Process
// pushes items to consume until the source is exhausted or consume returns
// false. A holder may be traversed only once.
type ItemHolder[T any] interface {
	Process(consume func(item T) bool) error
}

// HolderFunc adapts a function to ItemHolder.
type HolderFunc[T any] func(consume func(item T) bool) error

func (f HolderFunc[T]) Process(consume func(item T) bool) error { return f(consume) }

// HolderOf returns a holder over a materialized slice.
func HolderOf[T any](items []T) ItemHolder[T] {
	return HolderFunc[T](func(consume func(T) bool) error {
		for _, item := range items {
			if !consume(item) {
				return nil
			}
		}
		return nil
	})
}

// FromSeq returns a holder over an iterator.
func FromSeq[T any](seq iter.Seq[T]) ItemHolder[T] {
	return HolderFunc[T](func(consume func(T) bool) error {
		for item := range seq {
			if !consume(item) {
				return nil
			}
		}
		return nil
	})
}

// FromSeq2 returns a holder over an iterator that can fail mid-stream, such
// as a database cursor. The first error ends the traversal.
func FromSeq2[T any](seq iter.Seq2[T, error]) ItemHolder[T] {
	return HolderFunc[T](func(consume func(T) bool) error {
		for item, err := range seq {
			if err != nil {
				return err
			}
			if !consume(item) {
				return nil
			}
		}
		return nil
	})
}

// Unique drops items whose key was already produced.
func Unique[T any](h ItemHolder[T], key func(T) any) ItemHolder[T] {
	return HolderFunc[T](func(consume func(T) bool) error {
		seen := make(map[any]struct{})
		return h.Process(func(item T) bool {
			k := key(item)
			if _, dup := seen[k]; dup {
				return true
			}
			seen[k] = struct{}{}
			return consume(item)
		})
	})
}

// Collect drains a holder into a slice.
func Collect[T any](h ItemHolder[T]) ([]T, error) {
	var items []T
	err := h.Process(func(item T) bool {
		items = append(items, item)
		return true
	})
	return items, err
}
