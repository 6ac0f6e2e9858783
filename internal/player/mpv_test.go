package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"
)

// fakeMPV answers get_property time-pos on a unix socket, preceded by an
// unrelated event line the way mpv interleaves them.
func fakeMPV(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					req := gjson.Parse(sc.Text())
					id := req.Get("request_id").Int()
					fmt.Fprintln(c, `{"event":"playback-restart"}`)
					switch req.Get("command.0").String() {
					case "get_property":
						fmt.Fprintf(c, `{"data":123.5,"request_id":%d,"error":"success"}`+"\n", id)
					default:
						fmt.Fprintf(c, `{"request_id":%d,"error":"invalid parameter"}`+"\n", id)
					}
				}
			}(conn)
		}
	}()
	return sock
}

func TestIPCClient(t *testing.T) {
	c := &ipcClient{socket: fakeMPV(t)}

	pos, ok := c.timePos()
	if !ok || pos != 123.5 {
		t.Fatalf("expected position 123.5, got %v (%v)", pos, ok)
	}
	if _, err := c.command("frobnicate"); err == nil {
		t.Fatalf("expected mpv error to be returned")
	}
}

func TestIPCClient_NoSocket(t *testing.T) {
	c := &ipcClient{socket: filepath.Join(t.TempDir(), "missing.sock")}
	if _, ok := c.timePos(); ok {
		t.Fatalf("expected no position without a socket")
	}
}

func TestMPV_MissingCommand(t *testing.T) {
	m := &MPV{Command: "scrimm-no-such-player-binary"}
	if _, err := m.Launch(context.Background(), mkVideo(t, "https://a.example/a.mp4")); !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("expected ErrNoPlayer, got %v", err)
	}
}
