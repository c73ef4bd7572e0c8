package cache

type Page[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"number"`
	HasNextPage bool `json:"hasNextPage"`
}

// InfiniteData keeps loaded pages and the params that produced them
// index-aligned. Methods never modify the receiver's slices.
type InfiniteData[T any] struct {
	Pages      []Page[T] `json:"pages"`
	PageParams []int     `json:"pageParams"`
}

const FirstPageParam = 1

func (d InfiniteData[T]) Flatten() []T {
	total := 0
	for _, page := range d.Pages {
		total += len(page.Items)
	}

	items := make([]T, 0, total)
	for _, page := range d.Pages {
		items = append(items, page.Items...)
	}
	return items
}

func (d InfiniteData[T]) HasNextPage() bool {
	if len(d.Pages) == 0 {
		return false
	}
	return d.Pages[len(d.Pages)-1].HasNextPage
}

// NextPageParam follows the last page, or starts at the first page.
func (d InfiniteData[T]) NextPageParam() (int, bool) {
	if len(d.Pages) == 0 {
		return FirstPageParam, true
	}

	last := d.Pages[len(d.Pages)-1]
	if !last.HasNextPage {
		return 0, false
	}
	return last.Number + 1, true
}

func (d InfiniteData[T]) Append(page Page[T], param int) InfiniteData[T] {
	pages := make([]Page[T], len(d.Pages), len(d.Pages)+1)
	copy(pages, d.Pages)
	params := make([]int, len(d.PageParams), len(d.PageParams)+1)
	copy(params, d.PageParams)

	return InfiniteData[T]{
		Pages:      append(pages, page),
		PageParams: append(params, param),
	}
}

// MapItems rewrites every item across all pages. Pages whose items are all
// unchanged still get fresh slices.
func (d InfiniteData[T]) MapItems(fn func(item T) T) InfiniteData[T] {
	pages := make([]Page[T], len(d.Pages))
	for i, page := range d.Pages {
		items := make([]T, len(page.Items))
		for j, item := range page.Items {
			items[j] = fn(item)
		}
		pages[i] = Page[T]{Items: items, Number: page.Number, HasNextPage: page.HasNextPage}
	}

	params := make([]int, len(d.PageParams))
	copy(params, d.PageParams)

	return InfiniteData[T]{Pages: pages, PageParams: params}
}

// PrependToFirstPage inserts item at the head of the first page only.
// Without pages there is nothing to prepend to and ok is false.
func (d InfiniteData[T]) PrependToFirstPage(item T) (InfiniteData[T], bool) {
	if len(d.Pages) == 0 {
		return d, false
	}

	pages := make([]Page[T], len(d.Pages))
	copy(pages, d.Pages)

	first := pages[0]
	items := make([]T, 0, len(first.Items)+1)
	items = append(items, item)
	items = append(items, first.Items...)
	pages[0] = Page[T]{Items: items, Number: first.Number, HasNextPage: first.HasNextPage}

	params := make([]int, len(d.PageParams))
	copy(params, d.PageParams)

	return InfiniteData[T]{Pages: pages, PageParams: params}, true
}
