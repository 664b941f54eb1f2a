package store

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// respServer is an in-process server speaking enough RESP2 for the cache:
// PING, GET and SET with an optional EX or PX expiry. Everything else gets
// an error reply, which go-redis tolerates during its connection handshake.
type respServer struct {
	listener net.Listener

	mu     sync.Mutex
	values map[string][]byte
	expiry map[string][]string
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &respServer{
		listener: listener,
		values:   make(map[string][]byte),
		expiry:   make(map[string][]string),
	}
	go srv.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return srv
}

func (s *respServer) Addr() string { return s.listener.Addr().String() }

// Expiry returns the expiry arguments of the last SET of key.
func (s *respServer) Expiry(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry[key]
}

func (s *respServer) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

func (s *respServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *respServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.reply(w, args)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *respServer) reply(w *bufio.Writer, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		_, _ = w.WriteString("+PONG\r\n")
	case "GET":
		if len(args) != 2 {
			_, _ = w.WriteString("-ERR wrong number of arguments for 'get'\r\n")
			return
		}
		value, ok := s.values[args[1]]
		if !ok {
			_, _ = w.WriteString("$-1\r\n")
			return
		}
		_, _ = fmt.Fprintf(w, "$%d\r\n%s\r\n", len(value), value)
	case "SET":
		if len(args) < 3 {
			_, _ = w.WriteString("-ERR wrong number of arguments for 'set'\r\n")
			return
		}
		s.values[args[1]] = []byte(args[2])
		s.expiry[args[1]] = args[3:]
		_, _ = w.WriteString("+OK\r\n")
	default:
		_, _ = fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", args[0])
	}
}

// readCommand reads one array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	n, err := readLength(r, '*')
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("empty command")
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		size, err := readLength(r, '$')
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLength(r *bufio.Reader, prefix byte) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] != prefix {
		return 0, fmt.Errorf("unexpected line %q", line)
	}
	return strconv.Atoi(line[1:])
}
