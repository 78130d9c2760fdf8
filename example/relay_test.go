package example

import (
	"bytes"
	"context"
	"io"
	"relay-im/client"
	"relay-im/server"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const wait = 3 * time.Second

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) (*server.Relay, string, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	ctx, cancel := context.WithCancel(context.Background())
	relay := server.NewRelay(server.WithLogger(log))
	tcpLn, err := server.ListenTCP(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	wsLn, err := server.ListenWS(ctx, "127.0.0.1:0", log)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _ = relay.Run(ctx) }()
	go func() { defer wg.Done(); _ = relay.Serve(ctx, tcpLn) }()
	go func() { defer wg.Done(); _ = relay.Serve(ctx, wsLn) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return relay, tcpLn.Addr().String(), wsLn.Addr().String()
}

func waitRegistered(t *testing.T, relay *server.Relay, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		infos, err := relay.Sessions(context.Background())
		if err != nil {
			return false
		}
		for _, info := range infos {
			if info.Registered && info.Name == name {
				return true
			}
		}
		return false
	}, wait, 10*time.Millisecond)
}

func connect(c client.Client) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect() }()
	return errCh
}

func TestTcpAndWebsocketUsersShareTheRoom(t *testing.T) {
	req := require.New(t)
	relay, tcpAddr, wsAddr := startServer(t)

	aliceIn, aliceKeys := io.Pipe()
	defer aliceKeys.Close()
	aliceOut := &syncBuffer{}
	alice := client.NewTcpClient("alice", tcpAddr).WithIO(aliceIn, aliceOut)
	aliceDone := connect(alice)
	waitRegistered(t, relay, "alice")

	bobIn, bobKeys := io.Pipe()
	defer bobKeys.Close()
	bobOut := &syncBuffer{}
	bob := client.NewWsClient("bob", wsAddr).WithIO(bobIn, bobOut)
	bobDone := connect(bob)
	waitRegistered(t, relay, "bob")

	req.Eventually(func() bool {
		return strings.Contains(aliceOut.String(), "bob has joined the chat!")
	}, wait, 10*time.Millisecond)

	_, err := io.WriteString(aliceKeys, "hi\n")
	req.NoError(err)
	req.Eventually(func() bool {
		return strings.Contains(bobOut.String(), "alice: hi")
	}, wait, 10*time.Millisecond)
	req.NotContains(aliceOut.String(), "alice: hi")

	_, err = io.WriteString(bobKeys, "quit\n")
	req.NoError(err)
	select {
	case err = <-bobDone:
		req.NoError(err)
	case <-time.After(wait):
		t.Fatal("bob did not quit")
	}
	req.Eventually(func() bool {
		return strings.Contains(aliceOut.String(), "bob has left the chat")
	}, wait, 10*time.Millisecond)
	req.Eventually(func() bool { return relay.Live() == 1 }, wait, 10*time.Millisecond)

	alice.Disconnect()
	select {
	case err = <-aliceDone:
		req.NoError(err)
	case <-time.After(wait):
		t.Fatal("alice did not disconnect")
	}
}

func TestServerShutdownDisconnectsClients(t *testing.T) {
	req := require.New(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	relay := server.NewRelay(server.WithLogger(logrus.NewEntry(logger)))
	tcpLn, err := server.ListenTCP(ctx, "127.0.0.1:0")
	req.NoError(err)
	runDone := make(chan error, 1)
	go func() { runDone <- relay.Run(ctx) }()
	go func() { _ = relay.Serve(ctx, tcpLn) }()

	in, keys := io.Pipe()
	defer keys.Close()
	out := &syncBuffer{}
	carol := client.NewTcpClient("carol", tcpLn.Addr().String()).WithIO(in, out)
	carolDone := connect(carol)
	waitRegistered(t, relay, "carol")

	cancel()
	req.NoError(<-runDone)
	select {
	case err = <-carolDone:
		req.NoError(err)
	case <-time.After(wait):
		t.Fatal("client did not notice the server going away")
	}
	req.Contains(out.String(), "Disconnected from server")
}
