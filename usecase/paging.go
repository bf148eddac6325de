package usecase

import "iter"

// MaxPageSize matches the repository limit clamp.
const MaxPageSize = 100

// Paginate lazily walks fetch page by page, stopping after the first short
// page. Each range over the returned sequence starts again from offset zero.
func Paginate[T any](pageSize int, fetch func(limit, offset int) ([]T, error)) iter.Seq2[T, error] {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return func(yield func(T, error) bool) {
		for offset := 0; ; {
			page, err := fetch(pageSize, offset)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			offset += len(page)
		}
	}
}

// CollectAll drains seq, returning the first error it yields.
func CollectAll[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// PaginateAfter walks fetch by cursor instead of offset: each page starts
// after the position of the last item seen, so rows inserted ahead of the
// walk are neither repeated nor allowed to shift later pages.
func PaginateAfter[T, C any](pageSize int, fetch func(limit int, after *C) ([]T, error), position func(T) C) iter.Seq2[T, error] {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return func(yield func(T, error) bool) {
		var after *C
		for {
			page, err := fetch(pageSize, after)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := position(page[len(page)-1])
			after = &last
		}
	}
}
