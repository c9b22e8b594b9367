package telnet

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pipe returns a server Conn and the raw client end.
func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewConn(server, 2*time.Second, 2*time.Second), client
}

func send(t *testing.T, w io.Writer, data []byte) {
	t.Helper()
	go func() { _, _ = w.Write(data) }()
}

func TestReadLine_Terminators(t *testing.T) {
	for name, input := range map[string]string{
		"crlf": "hello\r\n",
		"lf":   "hello\n",
		"cr":   "hello\r",
	} {
		t.Run(name, func(t *testing.T) {
			conn, client := pipe(t)
			send(t, client, []byte(input))
			line, err := conn.ReadLine()
			require.NoError(t, err)
			assert.Equal(t, "hello", line)
		})
	}
}

func TestReadLine_DropsNegotiationAndControls(t *testing.T) {
	conn, client := pipe(t)
	input := []byte{IAC, DO, OptSuppressGoAhead, '/', 'e', 0x07, 'n', IAC, SB, 24, 0, 'x', IAC, SE, 'h', '\t', '!', '\r', '\n'}
	send(t, client, input)
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "/enh\t!", line)
}

func TestReadLine_KeepsUTF8(t *testing.T) {
	conn, client := pipe(t)
	send(t, client, []byte("/강화\r\n"))
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "/강화", line)
}

func TestReadLine_TooLong(t *testing.T) {
	conn, client := pipe(t)
	send(t, client, []byte(strings.Repeat("a", MaxLineLength+1)+"\n"))
	_, err := conn.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestReadLine_EOF(t *testing.T) {
	conn, client := pipe(t)
	go func() {
		_, _ = client.Write([]byte("partial"))
		_ = client.Close()
	}()
	line, err := conn.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", line)
}

func TestReadPassword_TogglesEcho(t *testing.T) {
	conn, client := pipe(t)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 3)
		_, _ = io.ReadFull(client, buf)
		_, _ = client.Write([]byte("hunter22\r\n"))
		rest := make([]byte, 5)
		_, _ = io.ReadFull(client, rest)
		got <- append(buf, rest...)
	}()

	pw, err := conn.ReadPassword()
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)
	select {
	case b := <-got:
		assert.Equal(t, []byte{IAC, WILL, OptEcho, IAC, WONT, OptEcho, '\r', '\n'}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("echo control bytes not received")
	}
}

func TestWriteLine(t *testing.T) {
	conn, client := pipe(t)
	go func() { _ = conn.WriteLine("welcome") }()
	buf := make([]byte, 9)
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "welcome\r\n", string(buf))
}

func TestFilterIAC(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{"plain", []byte("hello world"), []byte("hello world")},
		{"will", []byte{IAC, WILL, OptEcho, 'h', 'i'}, []byte("hi")},
		{"do between", []byte{'a', IAC, DO, OptLinemode, 'b'}, []byte("ab")},
		{"only command", []byte{IAC, DONT, OptEcho}, []byte{}},
		{"subnegotiation", []byte{IAC, SB, 24, 0, 'x', 't', 'e', 'r', 'm', IAC, SE, 'z'}, []byte("z")},
		{"escaped", []byte{'a', IAC, IAC, 'b'}, []byte{'a', IAC, 'b'}},
		{"nop", []byte{'x', IAC, NOP, 'y'}, []byte("xy")},
		{"several", []byte{IAC, WILL, OptSuppressGoAhead, IAC, WILL, OptEcho, 'o', 'k'}, []byte("ok")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterIAC(tt.input))
		})
	}
}

func TestPropertyFilterIAC_NoIACBytesPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOf(rapid.ByteRange(0, 254)).Draw(t, "input")
		assert.Equal(t, input, FilterIAC(input))
	})
}

// Escaping data and interleaving option negotiation is undone by FilterIAC.
func TestPropertyFilterIAC_RecoversEscapedData(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		var wire []byte
		for i, b := range data {
			if rapid.Bool().Draw(t, "negotiate") {
				wire = append(wire, IAC, rapid.SampledFrom([]byte{WILL, WONT, DO, DONT}).Draw(t, "cmd"), byte(i))
			}
			if b == IAC {
				wire = append(wire, IAC)
			}
			wire = append(wire, b)
		}
		assert.Equal(t, append([]byte{}, data...), FilterIAC(wire))
	})
}

func TestPropertyFilterIAC_OutputNeverLongerThanInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOf(rapid.Byte()).Draw(t, "input")
		assert.LessOrEqual(t, len(FilterIAC(input)), len(input))
	})
}
