package serial

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var ignoreGlog = goleak.IgnoreAnyFunction("github.com/golang/glog.(*loggingT).flushDaemon")

type testPort struct {
	readCh  chan byte
	closed  chan struct{}
	once    sync.Once
	lock    sync.Mutex
	written bytes.Buffer
}

func newTestPort() *testPort {
	return &testPort{
		readCh: make(chan byte),
		closed: make(chan struct{}),
	}
}

func (p *testPort) Read(b []byte) (int, error) {
	select {
	case v := <-p.readCh:
		b[0] = v
		return 1, nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *testPort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.written.Write(b)
}

func (p *testPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *testPort) inject(t *testing.T, s string) {
	for i := 0; i < len(s); i++ {
		select {
		case p.readCh <- s[i]:
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("inject %q timeout at %d", s, i)
		}
	}
}

func (p *testPort) output() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.written.String()
}

type consoleTestEnv struct {
	t      *testing.T
	port   *testPort
	con    *Console
	cancel func()
	errCh  chan error
}

func runConsole(t *testing.T, opts Options) *consoleTestEnv {
	env := &consoleTestEnv{
		t:     t,
		port:  newTestPort(),
		errCh: make(chan error, 1),
	}
	env.con = New(env.port, opts)
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	go func() {
		env.errCh <- env.con.Run(ctx)
	}()
	return env
}

func (e *consoleTestEnv) stop() error {
	e.cancel()
	select {
	case err := <-e.errCh:
		return err
	case <-time.After(time.Second):
		e.t.Fatal("console not stopped")
	}
	return nil
}

func TestReceiveAndReadChar(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{})
	env.port.inject(t, "hi")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, expected := range []byte("hi") {
		b, err := env.con.ReadChar(ctx)
		require.NoError(t, err)
		require.Equal(t, expected, b)
	}
	require.Equal(t, context.Canceled, env.stop())
}

func TestReadCharDrainsCoalescedBytes(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{})
	env.port.inject(t, "abc")
	require.Eventually(t, func() bool {
		return env.con.Stats().RxBuffered == 3
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var got []byte
	for i := 0; i < 3; i++ {
		b, err := env.con.ReadChar(ctx)
		require.NoError(t, err)
		got = append(got, b)
	}
	require.Equal(t, "abc", string(got))
	require.NoError(t, ctx.Err())
	env.stop()
}

func TestReadCharacterNonBlocking(t *testing.T) {
	con := New(newTestPort(), Options{})
	_, ok := con.ReadCharacter()
	require.False(t, ok)
	con.rx.Put('x')
	b, ok := con.ReadCharacter()
	require.True(t, ok)
	require.Equal(t, byte('x'), b)
}

func TestWriteStringAndFlush(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{})
	env.con.WriteString("hello ")
	env.con.Write([]byte("world\r\n"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.con.Flush(ctx))
	require.Equal(t, "hello world\r\n", env.port.output())
	env.stop()
}

func TestTxOverflowDropsSilently(t *testing.T) {
	con := New(newTestPort(), Options{TxSize: 16})
	n, err := con.WriteString(strings.Repeat("x", 20))
	require.NoError(t, err)
	require.Equal(t, 20, n)
	stats := con.Stats()
	require.Equal(t, 16, stats.TxBuffered)
	require.Equal(t, uint64(4), stats.TxDropped)
}

func TestRxOverflowDropsSilently(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{RxSize: 4})
	env.port.inject(t, "abcdef")
	require.Eventually(t, func() bool {
		return env.con.Stats().RxDropped == 2
	}, time.Second, time.Millisecond)

	buf := make([]byte, 8)
	n := env.con.rx.Read(buf)
	require.Equal(t, "abcd", string(buf[:n]))
	env.stop()
}

func TestLogfLevels(t *testing.T) {
	con := New(newTestPort(), Options{})
	drain := func() string {
		buf := make([]byte, 1024)
		return string(buf[:con.tx.Read(buf)])
	}

	require.Equal(t, LogInfo, con.Level())
	con.Logf(LogInfo, "info %d\r\n", 1)
	con.Logf(LogDebug, "debug\r\n")
	require.Equal(t, "info 1\r\ndebug\r\n", drain())

	require.NoError(t, con.SetLogLevel(LogError))
	con.Logf(LogWarning, "warning\r\n")
	con.Logf(LogError, "error\r\n")
	con.Logf(LogFatal, "fatal\r\n")
	con.Logf(LogOff, "off\r\n")
	con.Logf(LogLevel(42), "bogus\r\n")
	require.Equal(t, "error\r\nfatal\r\n", drain())

	require.Error(t, con.SetLogLevel(LogLevel(-1)))
	require.Equal(t, LogError, con.Level())

	con.SetLogLevel(LogOff)
	con.Logf(LogFatal, "fatal\r\n")
	require.Empty(t, drain())
}

func TestLogfTruncates(t *testing.T) {
	con := New(newTestPort(), Options{TxSize: 2048})
	con.Logf(LogError, "%s", strings.Repeat("y", 1000))
	require.Equal(t, MaxLogMessage-1, con.Stats().TxBuffered)
}

func TestLogfTruncatesOnRuneBoundary(t *testing.T) {
	con := New(newTestPort(), Options{TxSize: 2048})
	// "é" occupies the last kept byte and the first cut one.
	con.Logf(LogError, "%s", strings.Repeat("y", MaxLogMessage-2)+"é!")
	require.Equal(t, MaxLogMessage-2, con.Stats().TxBuffered)

	buf := make([]byte, 2048)
	n := con.tx.Read(buf)
	require.True(t, utf8.Valid(buf[:n]))
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{})
	require.Equal(t, context.Canceled, env.stop())

	_, err := env.con.ReadChar(context.Background())
	require.Equal(t, ErrClosed, err)
	_, err = env.con.WriteString("late")
	require.Equal(t, ErrClosed, err)
	select {
	case <-env.port.closed:
	default:
		t.Fatal("port not closed")
	}
}

func TestRunStopsOnPortError(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)
	env := runConsole(t, Options{})
	env.port.Close()
	select {
	case err := <-env.errCh:
		require.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("console not stopped")
	}
	env.cancel()
	select {
	case <-env.con.Done():
	default:
		t.Fatal("console not closed")
	}
}

func TestReadCharReturnsBufferedBytesAfterClose(t *testing.T) {
	con := New(newTestPort(), Options{})
	con.rx.Put('z')
	require.NoError(t, con.Close())
	b, err := con.ReadChar(context.Background())
	require.NoError(t, err)
	require.Equal(t, byte('z'), b)
	_, err = con.ReadChar(context.Background())
	require.Equal(t, ErrClosed, err)
}

func TestParseLogLevel(t *testing.T) {
	for n, name := range LogLevelNames() {
		level, err := ParseLogLevel(strings.ToUpper(name))
		require.NoError(t, err)
		require.Equal(t, LogLevel(n), level)
		require.Equal(t, name, level.String())
	}
	level, err := ParseLogLevel("warn")
	require.NoError(t, err)
	require.Equal(t, LogWarning, level)
	_, err = ParseLogLevel("verbose")
	require.Error(t, err)
	require.Equal(t, "invalid", LogLevel(99).String())
}
