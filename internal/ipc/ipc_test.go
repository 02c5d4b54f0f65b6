package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/async"
	"github.com/lupi-os/lupi/internal/dfc"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
	"github.com/lupi-os/lupi/internal/sched"
)

func newTestRig(t *testing.T) (*Manager, *sched.Scheduler, *proc.Table) {
	tbl := proc.NewTable()
	s := sched.New(vmm.New(false, nil), dfc.New())
	m := New(s)
	return m, s, tbl
}

func mustThread(t *testing.T, tbl *proc.Table, name string) *proc.Thread {
	_, th, err := tbl.CreateProcess(name)
	require.NoError(t, err)
	return th
}

func TestCreateServerRejectsDuplicateTag(t *testing.T) {
	m, _, tbl := newTestRig(t)
	srv := mustThread(t, tbl, "server")

	require.NoError(t, m.CreateServer(Tag{'T', 'E', 'S', 'T'}, srv))
	err := m.CreateServer(Tag{'T', 'E', 'S', 'T'}, srv)
	require.Error(t, err)
}

func TestConnectCompletesWhenServerAlreadyWaiting(t *testing.T) {
	m, _, tbl := newTestRig(t)
	srv := mustThread(t, tbl, "server")
	cli := mustThread(t, tbl, "client")
	tag := Tag{'T', 'E', 'S', 'T'}
	require.NoError(t, m.CreateServer(tag, srv))

	req := &async.Request{}
	require.NoError(t, m.RequestServerMsg(tag, req))

	page := NewPage(cli.Process(), 0)
	require.NoError(t, m.ConnectToServer(tag, page, cli))

	assert.True(t, req.Flags&async.FlagCompleted != 0)
}

func TestConnectBlocksUntilServerRequestsMsg(t *testing.T) {
	m, s, tbl := newTestRig(t)
	srv := mustThread(t, tbl, "server")
	cli := mustThread(t, tbl, "client")
	tag := Tag{'T', 'E', 'S', 'T'}
	require.NoError(t, m.CreateServer(tag, srv))

	done := make(chan error, 1)
	page := NewPage(cli.Process(), 0)
	go func() { done <- m.ConnectToServer(tag, page, cli) }()

	require.Eventually(t, func() bool {
		return cli.State() == proc.BlockedFromSvc
	}, time.Second, time.Millisecond)

	req := &async.Request{}
	require.NoError(t, m.RequestServerMsg(tag, req))
	m.deliverPendingConnections(m.find(tag))

	require.NoError(t, <-done)
	assert.Equal(t, proc.Ready, cli.State())
	_ = s
}

func TestSendThenReplyRoundTrip(t *testing.T) {
	m, _, tbl := newTestRig(t)
	srv := mustThread(t, tbl, "server")
	cli := mustThread(t, tbl, "client")
	tag := Tag{'T', 'E', 'S', 'T'}
	require.NoError(t, m.CreateServer(tag, srv))

	serverReq := &async.Request{}
	require.NoError(t, m.RequestServerMsg(tag, serverReq))

	page := NewPage(cli.Process(), 0)
	page.Messages[0].Length = 5
	clientReq := &async.Request{}
	page.Messages[0].ClientReq.Submit(cli, clientReq)

	require.NoError(t, m.SendMessage(tag, 0))
	assert.Equal(t, int32(0), serverReq.Result)
	assert.True(t, serverReq.Flags&async.FlagCompleted != 0)

	s := sched.New(vmm.New(false, nil), dfc.New())
	require.NoError(t, m.ReplyMessage(page, 0, s, 42))
	assert.Equal(t, int32(42), clientReq.Result)
}

func TestCancelProcessDeliversCancelledToBlockedClients(t *testing.T) {
	m, s, tbl := newTestRig(t)
	srvProc, srv, err := tbl.CreateProcess("server")
	require.NoError(t, err)
	cli := mustThread(t, tbl, "client")
	tag := Tag{'T', 'E', 'S', 'T'}
	require.NoError(t, m.CreateServer(tag, srv))

	page := NewPage(cli.Process(), 0)
	go m.ConnectToServer(tag, page, cli)

	require.Eventually(t, func() bool {
		return cli.State() == proc.BlockedFromSvc
	}, time.Second, time.Millisecond)

	m.CancelProcess(srvProc)

	require.Eventually(t, func() bool {
		return cli.State() == proc.Ready
	}, time.Second, time.Millisecond)
	_ = s
}
