// Package ipc implements the shared-page messaging of spec.md §4.7:
// a server registry keyed by 4-byte tag, client connect, and the
// message send/reply round-trip, grounded on the teacher's queue
// registry in internal/queue (a fixed-size table of named resources
// each owning a blocked-waiter structure).
package ipc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/async"
	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
	"github.com/lupi-os/lupi/internal/proc"
)

// Tag is the 4-byte server identifier (spec.md §4.7's "id").
type Tag [4]byte

// Message is one slot in a shared page's message array (spec.md §4.7:
// "length, an in-server AsyncRequest ..., an in-client AsyncRequest
// ..., a data offset within the page").
type Message struct {
	Length   int
	Offset   int
	ServerReq async.Slot
	ClientReq async.Slot
}

// Page is a shared page's IPC header: a fixed message array plus the
// owning process, mirroring spec.md §4.7's "each shared page carries a
// header with numMessages and an array of Message records." VirtAddr
// is the virtual address this page is mapped at in the owner's address
// space; package svc uses it to map the same page at the same address
// in a connecting client's address space via vmm.Manager.SharePage,
// per spec.md §4.2's same-virtual-address invariant.
type Page struct {
	mu       sync.Mutex
	Owner    *proc.Process
	VirtAddr uintptr
	Messages [constants.MaxMessagesPerPage]Message
}

// NewPage creates an empty shared-page IPC header owned by owner, at
// the given virtual address (spec.md §4.4's NewSharedPage SVC).
func NewPage(owner *proc.Process, virtAddr uintptr) *Page {
	return &Page{Owner: owner, VirtAddr: virtAddr}
}

// server is one registry entry: the 4-byte tag, the thread that
// registered it, its pending RequestServerMsg slot, and the list of
// clients blocked on ConnectToServer (spec.md §8, invariant 6).
type server struct {
	mu            sync.Mutex
	tag           Tag
	thread        *proc.Thread
	pendingMsg    async.Slot
	blockedClients proc.List
	page          *Page
}

// Scheduler is the subset of sched.Scheduler the IPC manager needs to
// move blocked clients back onto the ready list.
type Scheduler interface {
	ThreadSetState(t *proc.Thread, s proc.State)
	WakeIfWaiting(t *proc.Thread, result uint32)
}

// Manager is the IPC server registry (spec.md §3's "fixed-size server
// table").
type Manager struct {
	mu      sync.Mutex
	servers [constants.MaxServers]*server
	sched   Scheduler
}

// New creates an empty server registry bound to a scheduler.
func New(sched Scheduler) *Manager {
	return &Manager{sched: sched}
}

// CreateServer registers thread as the server for tag (spec.md §4.7:
// "registers the caller as the server for id; fails with AlreadyExists
// if taken").
func (m *Manager) CreateServer(tag Tag, thread *proc.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := -1
	for i, s := range m.servers {
		if s == nil {
			if slot == -1 {
				slot = i
			}
			continue
		}
		if s.tag == tag {
			return kerr.New("CreateServer", kerr.CodeAlreadyExists, "server tag already registered")
		}
	}
	if slot == -1 {
		return kerr.New("CreateServer", kerr.CodeResourceLimit, "server table full")
	}
	m.servers[slot] = &server{tag: tag, thread: thread}
	return nil
}

func (m *Manager) find(tag Tag) *server {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.servers {
		if s != nil && s.tag == tag {
			return s
		}
	}
	return nil
}

// RequestServerMsg posts the server's "waiting for a new message"
// request (spec.md §4.7). It becomes Accepted immediately and
// Completed once a client sends a message. Posting it also wakes any
// clients blocked in ConnectToServer.
func (m *Manager) RequestServerMsg(tag Tag, req *async.Request) error {
	s := m.find(tag)
	if s == nil {
		return kerr.New("RequestServerMsg", kerr.CodeNotFound, "no such server")
	}
	s.mu.Lock()
	req.Flags |= async.FlagAccepted
	s.pendingMsg.Submit(s.thread, req)
	s.mu.Unlock()
	m.deliverPendingConnections(s)
	return nil
}

// ConnectToServer associates page with the server for tag, blocking
// the caller until the server has an outstanding RequestServerMsg slot
// (spec.md §4.7: "blocks until the server has an outstanding request
// slot"). client is the calling thread; the caller is responsible for
// having already transitioned it to BlockedFromSvc/
// WaitingForServerConnect before any blocking occurs — here that
// transition and the wait are combined for the hosted model's
// synchronous-call shape, with the actual suspension expressed as a
// channel park exactly like async.Complete's consumer side. If the
// server exits while the caller is blocked, it returns a Cancelled
// error.
func (m *Manager) ConnectToServer(tag Tag, page *Page, client *proc.Thread) error {
	s := m.find(tag)
	if s == nil {
		return kerr.New("ConnectToServer", kerr.CodeNotFound, "no such server")
	}

	s.mu.Lock()
	pending := s.pendingMsg.Peek()
	if pending == nil {
		client.SetBlockReason(proc.BlockReasonWaitingForServerConnect)
		m.sched.ThreadSetState(client, proc.BlockedFromSvc)
		s.blockedClients.EnqueueTail(client)
		s.page = page
		s.mu.Unlock()

		if int32(client.Park()) == kerr.New("ConnectToServer", kerr.CodeCancelled, "").Result() {
			return kerr.New("ConnectToServer", kerr.CodeCancelled, "server exited")
		}
		return nil
	}
	s.page = page
	s.mu.Unlock()

	k := s.pendingMsg.TakeForCompletion()
	if k != nil {
		async.Complete(m.sched, k, 0)
	}
	return nil
}

// deliverPendingConnections wakes every client queued on s's
// blocked-client list once the server's RequestServerMsg slot is
// filled again, matching spec.md §4.7's "on first delivery ... marks
// each per-message AsyncRequest ready for future use."
func (m *Manager) deliverPendingConnections(s *server) {
	for {
		s.mu.Lock()
		next := s.blockedClients.Head()
		if next == nil {
			s.mu.Unlock()
			return
		}
		s.blockedClients.Dequeue(next)
		s.mu.Unlock()

		m.sched.ThreadSetState(next, proc.Ready)
		next.Wake(0)
	}
}

// SendMessage is the client's "send" path of CompleteIpcRequest(req,
// toServer=true): it completes the server's pending RequestServerMsg
// with the message index so the server observes the new message
// (spec.md §4.7 scenario 3).
func (m *Manager) SendMessage(tag Tag, msgIndex int) error {
	s := m.find(tag)
	if s == nil {
		return kerr.New("CompleteIpcRequest", kerr.CodeNotFound, "no such server")
	}
	s.mu.Lock()
	k := s.pendingMsg.TakeForCompletion()
	s.mu.Unlock()
	if k == nil {
		return kerr.New("CompleteIpcRequest", kerr.CodeBusy, "server has no pending RequestServerMsg")
	}
	async.Complete(m.sched, k, int32(msgIndex))
	m.deliverPendingConnections(s)
	return nil
}

// ReplyMessage is the server's "reply" path of CompleteIpcRequest(req,
// toServer=false): it completes the client's ClientReq slot on the
// given message with result.
func (m *Manager) ReplyMessage(page *Page, msgIndex int, sched async.Scheduler, result int32) error {
	if msgIndex < 0 || msgIndex >= len(page.Messages) {
		return kerr.New("CompleteIpcRequest", kerr.CodeArgument, "message index out of range")
	}
	msg := &page.Messages[msgIndex]
	k := msg.ClientReq.TakeForCompletion()
	if k == nil {
		return kerr.New("CompleteIpcRequest", kerr.CodeBusy, "no pending client reply for this message")
	}
	async.Complete(sched, k, result)
	return nil
}

// CancelProcess tears down every server and pending connection owned
// by or blocked on proc, delivering Cancelled completions per spec.md
// §8 scenario 5: "signals all threads blocked on P's server with a
// cancellation completion."
func (m *Manager) CancelProcess(p *proc.Process) {
	m.mu.Lock()
	var owned []*server
	for i, s := range m.servers {
		if s != nil && s.thread != nil && s.thread.Process() == p {
			owned = append(owned, s)
			m.servers[i] = nil
		}
	}
	m.mu.Unlock()

	cancelled := kerr.New("CompleteIpcRequest", kerr.CodeCancelled, "server exited").Result()

	for _, s := range owned {
		s.mu.Lock()
		if k := s.pendingMsg.TakeForCompletion(); k != nil {
			k.Req.Flags |= async.FlagCompleted
			k.Req.Result = cancelled
			k.Owner.IncrementCompleted()
			m.sched.WakeIfWaiting(k.Owner, k.Owner.CompletedRequests())
		}
		for {
			next := s.blockedClients.Head()
			if next == nil {
				break
			}
			s.blockedClients.Dequeue(next)
			m.sched.ThreadSetState(next, proc.Ready)
			next.SetBlockReason(proc.BlockReasonNone)
			next.Wake(uint32(cancelled))
		}
		s.mu.Unlock()
	}
}
