package proc

// List is the generic intrusive circular doubly-linked list spec.md
// §3/§9 describes: "Intrusive circular lists (ready list, blocked-
// client list) ... thread_enqueueBefore, thread_dequeue ... also
// reused by the server-blocked-clients list." A bounded table of
// index-based slots would also satisfy spec.md §9's suggestion, but
// since the Go model already has stable *Thread identity (no raw
// pointer aliasing concerns to avoid), a pointer-based circular list
// is the more direct translation and is what this type implements.
//
// A Thread belongs to at most one List at a time; List itself does
// not enforce that, callers (package sched, package ipc) do.
type List struct {
	head *Thread
}

// Empty reports whether the list has no members.
func (l *List) Empty() bool { return l.head == nil }

// Head returns the first thread on the list, or nil.
func (l *List) Head() *Thread { return l.head }

// EnqueueHead inserts t at the head of the list.
func (l *List) EnqueueHead(t *Thread) {
	if l.head == nil {
		t.prev, t.next = t, t
		l.head = t
		return
	}
	l.insertBefore(t, l.head)
	l.head = t
}

// EnqueueTail inserts t at the tail of the list (thread_yield's "move
// to tail", spec.md §4.3).
func (l *List) EnqueueTail(t *Thread) {
	if l.head == nil {
		l.EnqueueHead(t)
		return
	}
	l.insertBefore(t, l.head)
}

// EnqueueBefore inserts t immediately before ref (spec.md §4.3's
// thread_enqueueBefore). It never promotes t to head on its own, even
// when ref is the current head; callers that want that call
// EnqueueHead instead.
func (l *List) EnqueueBefore(t, ref *Thread) {
	if l.head == nil {
		l.EnqueueHead(t)
		return
	}
	l.insertBefore(t, ref)
}

func (l *List) insertBefore(t, ref *Thread) {
	prev := ref.prev
	t.next = ref
	t.prev = prev
	prev.next = t
	ref.prev = t
}

// Dequeue removes t from the list. It is a no-op if t is not linked
// into any list (prev/next both nil and t isn't the sole head).
func (l *List) Dequeue(t *Thread) {
	if t.prev == nil && t.next == nil {
		return
	}
	if t.next == t {
		// sole element
		l.head = nil
	} else {
		t.prev.next = t.next
		t.next.prev = t.prev
		if l.head == t {
			l.head = t.next
		}
	}
	t.prev, t.next = nil, nil
}

// Each calls fn for every thread on the list, starting at head, in
// list order. fn must not mutate the list.
func (l *List) Each(fn func(*Thread)) {
	if l.head == nil {
		return
	}
	t := l.head
	for {
		fn(t)
		t = t.next
		if t == l.head {
			break
		}
	}
}

// FindFirst scans the list from head for the first thread matching
// pred, or nil if none do. Nothing in the kernel calls it:
// sched.FindNextReadyThread and ipc's blocked-client loops read Head
// directly, since every thread on those lists qualifies.
func (l *List) FindFirst(pred func(*Thread) bool) *Thread {
	if l.head == nil {
		return nil
	}
	t := l.head
	for {
		if pred(t) {
			return t
		}
		t = t.next
		if t == l.head {
			return nil
		}
	}
}
